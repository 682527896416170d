// Copyright 2020 The Go Language Server Authors.
// SPDX-License-Identifier: BSD-3-Clause

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Conn is the common interface to the synchronization runtime's single
// duplex RPC connection.
//
// Conn is bidirectional; the server may both answer Calls and issue its own
// Requester frames back down the same socket (spec.md §4.6).
type Conn interface {
	// Call invokes the target method and waits for a response. params is
	// marshaled to JSON before sending; result, if non-nil, is unmarshaled
	// from the response's result field.
	Call(ctx context.Context, method string, params, result interface{}) (ID, error)

	// Notify invokes the target method but does not wait for a response.
	Notify(ctx context.Context, method string, params interface{}) error

	// Go starts the connection's read loop in its own goroutine, dispatching
	// server-initiated Requester frames to handler. It must be called
	// exactly once for each Conn.
	Go(ctx context.Context, handler Handler)

	// Close closes the connection and its underlying stream.
	Close() error

	// Done returns a channel that is closed when the read loop has
	// terminated, whether from Close or a fatal stream error.
	Done() <-chan struct{}

	// Err returns the error that terminated the read loop, if any.
	Err() error
}

// Dialer opens a fresh Stream to the RPC endpoint. It is called once per
// connect attempt, including reconnects, so that credentials picked up at
// dial time (e.g. a refreshed API key) are re-read on every attempt.
type Dialer func(ctx context.Context) (Stream, error)

// WebSocketDialer builds a Dialer that dials url with gorilla/websocket,
// attaching header (typically an Authorization: Api-Key header per
// spec.md §9) to the handshake request.
func WebSocketDialer(url string, header http.Header) Dialer {
	return func(ctx context.Context) (Stream, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", url, err)
		}
		return NewWebSocketStream(conn), nil
	}
}

type conn struct {
	dial Dialer

	writeMu sync.Mutex
	stream  Stream

	pendingMu sync.Mutex
	pending   map[ID]chan *Response

	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	reconnect      backoff.BackOff
	reconnectTries int

	generation atomic.Int64 // bumped every successful (re)connect

	hooks Hooks

	done chan struct{}
	err  atomic.Error
}

// Hooks lets an external observer (the metrics package) watch connection
// lifecycle events without Conn depending on it. Any field left nil is
// skipped.
type Hooks struct {
	// OnCallStart fires before a Call's request is written.
	OnCallStart func(method string)
	// OnCallEnd fires once a Call returns, with its duration and error (nil
	// on success).
	OnCallEnd func(method string, dur time.Duration, err error)
	// OnReconnect fires each time the read loop successfully re-dials after
	// a dropped stream.
	OnReconnect func()
}

// WithHooks installs lifecycle hooks, typically metrics.Hooks(...).
func WithHooks(h Hooks) Option {
	return func(c *conn) { c.hooks = h }
}

// Option configures a Conn constructed by Dial.
type Option func(*conn)

// WithLogger attaches a structured logger to the connection. The default is
// zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *conn) { c.logger = logger }
}

// WithBreaker installs a custom circuit breaker around Call. The default
// trips after 5 consecutive failures and resets after 30 seconds, per
// spec.md §9's guidance that a wedged server should fail fast rather than
// queue unbounded pending calls.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(c *conn) { c.breaker = gobreaker.NewCircuitBreaker(settings) }
}

// WithReconnectPolicy overrides the backoff policy used to re-dial after the
// stream drops. retries bounds the number of attempts; 0 means unlimited.
func WithReconnectPolicy(b backoff.BackOff, retries int) Option {
	return func(c *conn) {
		c.reconnect = b
		c.reconnectTries = retries
	}
}

// Dial opens a connection using dialer and applies opts. The connection is
// established (with retry per WithReconnectPolicy, default 3 attempts with a
// constant 5 second delay, grounded on websocket_client.py's
// connect(retries=3, delay=5)) before Dial returns.
func Dial(ctx context.Context, dialer Dialer, opts ...Option) (Conn, error) {
	c := &conn{
		dial:           dialer,
		pending:        make(map[ID]chan *Response),
		logger:         zap.NewNop(),
		breaker:        gobreaker.NewCircuitBreaker(defaultBreakerSettings()),
		reconnect:      backoff.NewConstantBackOff(5 * time.Second),
		reconnectTries: 3,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	stream, err := c.dialWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	c.stream = stream
	c.generation.Add(1)

	return c, nil
}

func defaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "tellurio-rpc",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func (c *conn) dialWithRetry(ctx context.Context) (Stream, error) {
	operation := func() (Stream, error) {
		s, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("rpc dial attempt failed", zap.Error(err))
			return nil, err
		}
		return s, nil
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(c.reconnect)}
	if c.reconnectTries > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(c.reconnectTries)))
	}
	stream, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to rpc endpoint: %w", err)
	}
	return stream, nil
}

// Call implements Conn.
func (c *conn) Call(ctx context.Context, method string, params, result interface{}) (id ID, err error) {
	start := time.Now()
	if c.hooks.OnCallStart != nil {
		c.hooks.OnCallStart(method)
	}
	if c.hooks.OnCallEnd != nil {
		defer func() { c.hooks.OnCallEnd(method, time.Since(start), err) }()
	}

	id = NewCallID()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return id, fmt.Errorf("marshaling call params: %w", err)
	}

	rchan := make(chan *Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = rchan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.logger.Debug("rpc send", zap.String("method", method), zap.Stringer("id", idStringer{id}))

	if _, err := c.breaker.Execute(func() (interface{}, error) {
		_, werr := c.write(ctx, req)
		return nil, werr
	}); err != nil {
		return id, fmt.Errorf("writing call: %w", err)
	}

	select {
	case <-ctx.Done():
		return id, ctx.Err()
	case <-c.done:
		if err := c.Err(); err != nil {
			return id, fmt.Errorf("connection closed: %w", err)
		}
		return id, fmt.Errorf("connection closed")
	case resp := <-rchan:
		c.logger.Debug("rpc receive", zap.String("method", method), zap.Stringer("id", idStringer{id}))
		if resp.err != nil {
			return id, resp.err
		}
		if result != nil && len(resp.result) > 0 {
			if err := json.Unmarshal(resp.result, result); err != nil {
				return id, fmt.Errorf("unmarshaling call result: %w", err)
			}
		}
		return id, nil
	}
}

// Notify implements Conn.
func (c *conn) Notify(ctx context.Context, method string, params interface{}) error {
	notify, err := NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("marshaling notify params: %w", err)
	}
	c.logger.Debug("rpc notify", zap.String("method", method))
	_, err = c.write(ctx, notify)
	return err
}

func (c *conn) replier(req Message) Replier {
	return func(ctx context.Context, result interface{}, err error) error {
		call, ok := req.(*Request)
		if !ok {
			// the incoming message was a notification; nothing to ack.
			return nil
		}
		response, rerr := NewResponse(call.id, result, err)
		if rerr != nil {
			return rerr
		}
		_, werr := c.write(ctx, response)
		return werr
	}
}

func (c *conn) write(ctx context.Context, msg Message) (int64, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.stream.Write(ctx, msg)
}

// Go implements Conn.
func (c *conn) Go(ctx context.Context, handler Handler) {
	go c.run(ctx, handler)
}

func (c *conn) run(ctx context.Context, handler Handler) {
	defer close(c.done)

	for {
		msg, _, err := c.stream.Read(ctx)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// the stream was closed locally by Close; stop instead of re-dialing.
				return
			}
			c.logger.Warn("rpc stream read failed, attempting reconnect", zap.Error(err))
			stream, rerr := c.dialWithRetry(ctx)
			if rerr != nil {
				c.fail(fmt.Errorf("stream lost and reconnect failed: %w", err))
				return
			}
			c.writeMu.Lock()
			c.stream = stream
			c.writeMu.Unlock()
			c.generation.Add(1)
			if c.hooks.OnReconnect != nil {
				c.hooks.OnReconnect()
			}
			// Per spec.md §9's open question, calls in flight at the time of
			// disconnect are not resent; each returns when its ctx is done, or
			// when done closes if the connection later fails. A call whose ctx
			// has no deadline keeps waiting until one of those happens.
			continue
		}

		switch m := msg.(type) {
		case Requester:
			if err := handler(ctx, c.replier(m), m); err != nil {
				c.fail(fmt.Errorf("handler error: %w", err))
				return
			}

		case *Response:
			c.pendingMu.Lock()
			rchan, ok := c.pending[m.id]
			c.pendingMu.Unlock()
			if ok {
				rchan <- m
			}
		}
	}
}

// Close implements Conn.
func (c *conn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.stream.Close()
}

// Done implements Conn.
func (c *conn) Done() <-chan struct{} { return c.done }

// Err implements Conn.
func (c *conn) Err() error { return c.err.Load() }

func (c *conn) fail(err error) {
	c.err.Store(err)
	c.writeMu.Lock()
	c.stream.Close()
	c.writeMu.Unlock()
}

// idStringer adapts an ID for zap.Stringer without pulling zapcore into
// message.go.
type idStringer struct{ id ID }

func (s idStringer) String() string { return s.id.String() }
