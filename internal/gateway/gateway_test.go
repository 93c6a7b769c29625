package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/prepwell/intervox/internal/protocol"
)

// fakeConn is a scriptable Conn for tests.
type fakeConn struct {
	mu      sync.Mutex
	inbox   chan []byte
	readErr error
	writes  [][]byte
	closes  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16)}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.inbox:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.readErr != nil {
				return nil, c.readErr
			}
			return nil, errors.New("connection reset")
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close(websocket.StatusCode, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
	close(c.inbox)
}

// countingDialer records every dial and returns the scripted results in order.
type countingDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	errs  []error
	calls int
}

func (d *countingDialer) dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.conns) {
		return d.conns[i], nil
	}
	return nil, errors.New("dial refused")
}

func (d *countingDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func testConfig(d *countingDialer) Config {
	return Config{
		URL:         "ws://backend/ws/interview",
		SettleDelay: time.Millisecond,
		Backoff:     time.Millisecond,
		MaxBackoff:  8 * time.Millisecond,
		MaxAttempts: 3,
		Dial:        d.dial,
	}
}

func TestGateway_BackoffSequence(t *testing.T) {
	t.Parallel()
	g := New(Config{URL: "ws://x"}) // package defaults

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
		10000 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := g.delayFor(attempt); got != expected {
			t.Errorf("delayFor(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestGateway_ConnectAndDispatch(t *testing.T) {
	t.Parallel()
	conn := newFakeConn()
	d := &countingDialer{conns: []*fakeConn{conn}}
	g := New(testConfig(d))

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	conn.inbox <- []byte(`{"type":"ready","session_id":"s1"}`)
	conn.inbox <- []byte(`{"type":"question","question":"Why Go?"}`)

	first := <-g.Messages()
	if first.Type != protocol.TypeReady || first.SessionID != "s1" {
		t.Errorf("first message = %+v", first)
	}
	second := <-g.Messages()
	if second.Type != protocol.TypeQuestion {
		t.Errorf("second message = %+v", second)
	}
}

func TestGateway_SendWithoutConnectionIsNoOp(t *testing.T) {
	t.Parallel()
	d := &countingDialer{}
	g := New(testConfig(d))

	if err := g.Send(context.Background(), protocol.Answer("hello there friend")); err != nil {
		t.Fatalf("send on closed gateway returned error: %v", err)
	}
	if d.dialCount() != 0 {
		t.Error("send must never dial")
	}
}

func TestGateway_ReconnectStopsAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	conn := newFakeConn()
	d := &countingDialer{
		conns: []*fakeConn{conn},
		// Every dial after the first fails.
		errs: []error{nil, errors.New("refused"), errors.New("refused"), errors.New("refused"), errors.New("refused")},
	}
	g := New(testConfig(d))

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn.failWith(errors.New("abnormal close"))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-g.Statuses():
			if s == StatusFailed {
				goto done
			}
		case <-deadline:
			t.Fatal("timed out waiting for StatusFailed")
		}
	}
done:
	// 1 initial dial + MaxAttempts reconnect dials, then nothing more.
	if got := d.dialCount(); got != 4 {
		t.Errorf("dial count = %d, want 4", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := d.dialCount(); got != 4 {
		t.Errorf("dial count grew to %d after failure", got)
	}
}

func TestGateway_ReconnectResetsAttemptCounter(t *testing.T) {
	t.Parallel()
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	d := &countingDialer{
		conns: []*fakeConn{conn1, nil, conn2},
		errs:  []error{nil, errors.New("refused"), nil},
	}
	g := New(testConfig(d))

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn1.failWith(errors.New("abnormal close"))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-g.Statuses():
			if s == StatusConnected && d.dialCount() == 3 {
				g.mu.Lock()
				attempts := g.attempts
				g.mu.Unlock()
				if attempts != 0 {
					t.Errorf("attempts = %d after successful open, want 0", attempts)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reconnection")
		}
	}
}

func TestGateway_NoReconnectOnNormalClosure(t *testing.T) {
	t.Parallel()
	conn := newFakeConn()
	d := &countingDialer{conns: []*fakeConn{conn}}
	g := New(testConfig(d))

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn.failWith(fmt.Errorf("closing: %w", websocket.CloseError{Code: websocket.StatusNormalClosure}))

	time.Sleep(30 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d after normal closure, want 1", got)
	}
}

func TestGateway_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	conn := newFakeConn()
	d := &countingDialer{conns: []*fakeConn{conn}}
	g := New(testConfig(d))

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	conn.mu.Lock()
	closes := conn.closes
	conn.mu.Unlock()
	if closes != 1 {
		t.Errorf("socket closed %d times, want 1", closes)
	}
	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d after double close, want 1", got)
	}
}

func TestGateway_MarkEndingSuppressesReconnect(t *testing.T) {
	t.Parallel()
	conn := newFakeConn()
	d := &countingDialer{conns: []*fakeConn{conn}}
	g := New(testConfig(d))

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	g.MarkEnding()
	conn.failWith(errors.New("abnormal close"))

	time.Sleep(30 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1: ending sessions must not reconnect", got)
	}
}
