package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"
	textRequest  = "TEXT\n"
	successLine  = "SUCCESS\n"
	errorLine    = "ERROR\n"
	maxTextBytes = 1 << 20
)

type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	incoming chan *tcpConn
	port     int
}

func newTCPServer() *tcpServer { return &tcpServer{incoming: make(chan *tcpConn, 8)} }

func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, _ := getPortRange()
	addr := net.JoinHostPort(residentHost, strconv.Itoa(start))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.lis = lis
	s.port = start
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx, lis)
	return nil
}

func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		// A client that stalls mid-handshake must not hold up the others.
		go func(c net.Conn) {
			tc, ok := s.handshake(c)
			if !ok {
				return
			}
			select {
			case s.incoming <- tc:
			case <-ctx.Done():
				_ = c.Close()
			}
		}(c)
	}
}

// handshake answers pings itself and parses hand-overs:
//
//	TEXT\n<language>\n<byte count>\n<text>
func (s *tcpServer) handshake(c net.Conn) (*tcpConn, bool) {
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	line, _ := br.ReadString('\n')

	switch line {
	case pingRequest:
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	case textRequest:
		req, err := readText(br)
		if err != nil {
			log.Printf("singleinstance: bad request from %s: %v", c.RemoteAddr(), err)
			_, _ = bw.WriteString(errorLine + err.Error())
			_ = bw.Flush()
			_ = c.Close()
			return nil, false
		}
		_ = c.SetDeadline(time.Time{})
		return &tcpConn{c: c, r: req, w: bw}, true
	default:
		_ = c.Close()
		return nil, false
	}
}

func readText(br *bufio.Reader) (Request, error) {
	lang, err := br.ReadString('\n')
	if err != nil {
		return Request{}, fmt.Errorf("read language: %w", err)
	}
	sizeLine, err := br.ReadString('\n')
	if err != nil {
		return Request{}, fmt.Errorf("read size: %w", err)
	}
	size, err := strconv.Atoi(strings.TrimSpace(sizeLine))
	if err != nil || size < 0 || size > maxTextBytes {
		return Request{}, fmt.Errorf("invalid size %q", strings.TrimSpace(sizeLine))
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(br, buf); err != nil {
		return Request{}, fmt.Errorf("read text: %w", err)
	}
	return Request{Language: strings.TrimSpace(lang), Text: string(buf)}, nil
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	err := s.lis.Close()
	s.lis = nil
	s.port = 0
	return err
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess() error {
	if _, err := tc.w.WriteString(successLine); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorLine + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }

type tcpClient struct{}

func (tcpClient) Submit(ctx context.Context, req Request) error {
	timeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			timeout = d
		}
	}
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, timeout) {
			continue
		}
		return send(addr, timeout, req)
	}
	return ErrNoResident
}

func send(addr string, timeout time.Duration, req Request) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial resident: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	lang := strings.ReplaceAll(req.Language, "\n", " ")
	fmt.Fprintf(w, "%s%s\n%d\n%s", textRequest, lang, len(req.Text), req.Text)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("send to resident: %w", err)
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read resident reply: %w", err)
	}
	switch status {
	case successLine:
		return nil
	case errorLine:
		msg, _ := io.ReadAll(br)
		return errors.New(string(msg))
	default:
		return fmt.Errorf("unexpected reply %q", strings.TrimSpace(status))
	}
}

// DetectResident reports the port of a resident that answers PING.
func DetectResident(ctx context.Context) (int, bool) {
	timeout := 300 * time.Millisecond
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			timeout = d
		}
	}
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if ping(net.JoinHostPort(residentHost, strconv.Itoa(port)), timeout) {
			return port, true
		}
	}
	return 0, false
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(conn, pingRequest); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
