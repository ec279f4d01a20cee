package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"clip-translate/appstate"
	"clip-translate/clipboard"
	"clip-translate/config"
	"clip-translate/eventloop"
	"clip-translate/singleinstance"
)

type emptySource struct{}

func (emptySource) ReadImage() []byte { return nil }

var _ clipboard.Source = emptySource{}

func TestNormalizeFlagDashes(t *testing.T) {
	saved := os.Args
	defer func() { os.Args = saved }()

	os.Args = []string{"clip-translate", "--headless", "--config-dir=/tmp/x", "-lang", "English", "--"}
	normalizeFlagDashes()

	assert.Equal(t, []string{"clip-translate", "-headless", "-config-dir=/tmp/x", "-lang", "English", "--"}, os.Args)
}

func TestReadCommandsSwitchesLanguage(t *testing.T) {
	state := appstate.New("")
	loop := eventloop.New(eventloop.Options{
		Config: &config.Config{},
		State:  state,
		Source: emptySource{},
	})

	readCommands(context.Background(), loop, strings.NewReader("\n:lang Deutsch\n"))

	assert.Equal(t, "Deutsch", state.Language())
}

type fakeConn struct {
	req      singleinstance.Request
	success  bool
	errorMsg string
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }
func (c *fakeConn) RespondSuccess() error           { c.success = true; return nil }
func (c *fakeConn) RespondError(msg string) error   { c.errorMsg = msg; return nil }
func (c *fakeConn) Close() error                    { return nil }

type submitted struct {
	texts    []string
	language string
}

func (s *submitted) SubmitText(text string)   { s.texts = append(s.texts, text) }
func (s *submitted) SetLanguage(label string) { s.language = label }

func TestHandOverSubmitsEveryText(t *testing.T) {
	sink := &submitted{}
	for _, text := range []string{"one", "two", "three"} {
		conn := &fakeConn{req: singleinstance.Request{Language: "French", Text: text}}
		handOver(context.Background(), conn, sink)
		assert.True(t, conn.success, text)
	}
	assert.Equal(t, []string{"one", "two", "three"}, sink.texts)
	assert.Equal(t, "French", sink.language)
}

func TestHandOverRejectsBlankAndShutdown(t *testing.T) {
	sink := &submitted{}
	blank := &fakeConn{req: singleinstance.Request{Text: "  "}}
	handOver(context.Background(), blank, sink)
	assert.Equal(t, "empty text", blank.errorMsg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	late := &fakeConn{req: singleinstance.Request{Text: "late"}}
	handOver(ctx, late, sink)
	assert.Equal(t, "shutting down", late.errorMsg)
	assert.False(t, late.success)
	assert.Empty(t, sink.texts)
}
