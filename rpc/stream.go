// Copyright 2018 The Go Language Server Authors.
// SPDX-License-Identifier: BSD-3-Clause

package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Stream abstracts the transport mechanics from the JSON-RPC protocol.
// A Conn reads and writes messages using the stream it was provided on
// construction, and assumes that each call to Read or Write fully transfers
// a single message, or returns an error.
//
// A stream is not safe for concurrent use; it is expected that Read is
// called from a single goroutine and Write is safe to call concurrently
// with that goroutine (this implementation serializes writes internally).
type Stream interface {
	// Read gets the next message from the stream.
	Read(context.Context) (Message, int64, error)
	// Write sends a message to the stream.
	Write(context.Context, Message) (int64, error)
	// Close closes the connection. Any blocked Read or Write operations will
	// be unblocked and return errors.
	Close() error
}

// wsStream is a Stream backed by a single gorilla/websocket connection.
//
// Unlike the header-framed stream this replaces, a websocket message is
// already a complete, self-delimiting frame, so no Content-Length framing
// is required: one text message in, one Message out.
type wsStream struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

// NewWebSocketStream wraps an established *websocket.Conn (dialed against
// the `/ws/v0/rpc/` endpoint) as a Stream.
func NewWebSocketStream(conn *websocket.Conn) Stream {
	return &wsStream{conn: conn}
}

func (s *wsStream) Read(ctx context.Context) (Message, int64, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	default:
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, 0, fmt.Errorf("reading websocket frame: %w", err)
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, int64(len(data)), fmt.Errorf("decoding message: %w", err)
	}
	return msg, int64(len(data)), nil
}

func (s *wsStream) Write(ctx context.Context, msg Message) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	data, err := marshalMessage(msg)
	if err != nil {
		return 0, fmt.Errorf("marshaling message: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return 0, fmt.Errorf("writing websocket frame: %w", err)
	}
	return int64(len(data)), nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

// marshaler is implemented by every concrete Message type.
type marshaler interface {
	MarshalJSON() ([]byte, error)
}

func marshalMessage(msg Message) ([]byte, error) {
	m, ok := msg.(marshaler)
	if !ok {
		return nil, fmt.Errorf("rpc: message of type %T cannot be marshaled", msg)
	}
	return m.MarshalJSON()
}
