// Package singleinstance keeps one resident copy of the app per user. A later
// launch finds the resident over loopback TCP and hands its text over instead
// of starting a second clipboard watcher.
package singleinstance

import (
	"context"
	"errors"
)

// ErrNoResident is returned by Client.Submit when nothing answers in the
// port range.
var ErrNoResident = errors.New("no resident instance")

// Request is one hand-over from a later launch.
type Request struct {
	// Language is optional; blank keeps the resident's current label.
	Language string
	Text     string
}

// Server owns the loopback endpoint.
type Server interface {
	// Start binds the first port of the range. It fails when a resident
	// already holds it.
	Start(ctx context.Context) error
	Port() int
	// Next returns the next accepted hand-over, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

type Conn interface {
	Request() Request
	RespondSuccess() error
	RespondError(msg string) error
	Close() error
}

type Client interface {
	// Submit hands req to the resident. It returns ErrNoResident when no
	// resident answered.
	Submit(ctx context.Context, req Request) error
}

func NewServer() Server { return newTCPServer() }

func NewClient() Client { return tcpClient{} }
