// Copyright 2020 The Go Language Server Authors.
// SPDX-License-Identifier: BSD-3-Clause

// Package rpc implements the single-connection, multiplexed JSON-RPC 2.0
// transport that carries the client synchronization runtime's requests,
// responses and server-initiated notifications.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Version is the JSON-RPC protocol version this package speaks.
const Version = "2.0"

// ID is a JSON-RPC request identifier.
//
// spec.md §4.1 requires a fresh UUIDv4 string per Call, so unlike the
// dual string/number ID supported for LSP compatibility upstream, this ID
// is always the string form.
type ID struct {
	value string
}

// NewID wraps a string as an ID. Callers pass uuid.NewString() per
// spec.md §4.1.
func NewID(value string) ID { return ID{value: value} }

// NewCallID mints a fresh UUIDv4 ID for an outgoing Call.
func NewCallID() ID { return ID{value: uuid.NewString()} }

// String returns the identifier's string form.
func (id ID) String() string { return id.value }

// IsZero reports whether id was never assigned a value.
func (id ID) IsZero() bool { return id.value == "" }

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &id.value)
}

// Message is the interface to all JSON-RPC message types.
//
// They share no common functionality, but are a closed set of concrete
// types that are allowed to implement this interface.
//
// The message types are *Request, *Response and *Notification.
type Message interface {
	// isJSONRPC2Message is used to make the set of message implementations a
	// closed set.
	isJSONRPC2Message()
}

// Requester is the shared interface to jsonrpc2 messages that request
// a method be invoked.
//
// The request types are a closed set of *Request and *Notification.
type Requester interface {
	Message

	// Method is a string containing the method name to invoke.
	Method() string
	// Params is the raw, not yet unmarshaled method parameters.
	Params() json.RawMessage

	// isJSONRPC2Request is used to make the set of request implementations closed.
	isJSONRPC2Request()
}

// Request is a request that expects a response.
//
// The response will have a matching ID.
type Request struct {
	method string
	params json.RawMessage
	id     ID
}

// compile time check whether the Request implements a json.Marshaler and json.Unmarshaler interfaces.
var (
	_ json.Marshaler   = (*Request)(nil)
	_ json.Unmarshaler = (*Request)(nil)
)

// NewRequest constructs a new Request for the supplied ID, method and
// parameters.
func NewRequest(id ID, method string, params interface{}) (*Request, error) {
	p, err := marshalInterface(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling request params: %w", err)
	}
	return &Request{id: id, method: method, params: p}, nil
}

func (r *Request) Method() string          { return r.method }
func (r *Request) Params() json.RawMessage { return r.params }
func (r *Request) ID() ID                  { return r.id }
func (r *Request) isJSONRPC2Message()      {}
func (r *Request) isJSONRPC2Request()      {}

type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Request) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(wireRequest{
		JSONRPC: Version,
		ID:      &r.id,
		Method:  r.method,
		Params:  r.params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Request) UnmarshalJSON(data []byte) error {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshaling request: %w", err)
	}
	r.method = w.Method
	r.params = w.Params
	if w.ID != nil {
		r.id = *w.ID
	}
	return nil
}

// Response is a reply to a Request.
//
// It will have the same ID as the call it is a response to.
type Response struct {
	result json.RawMessage
	err    error
	id     ID
}

// compile time check whether the Response implements a json.Marshaler and json.Unmarshaler interfaces.
var (
	_ json.Marshaler   = (*Response)(nil)
	_ json.Unmarshaler = (*Response)(nil)
)

// NewResponse constructs a new Response that is a reply to id. If err is
// non-nil, result is ignored.
func NewResponse(id ID, result interface{}, err error) (*Response, error) {
	if err != nil {
		return &Response{id: id, err: err}, nil
	}
	r, merr := marshalInterface(result)
	if merr != nil {
		return nil, fmt.Errorf("marshaling response result: %w", merr)
	}
	return &Response{id: id, result: r}, nil
}

func (r *Response) Result() json.RawMessage { return r.result }
func (r *Response) Err() error              { return r.err }
func (r *Response) ID() ID                  { return r.id }
func (r *Response) isJSONRPC2Message()      {}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r *Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{JSONRPC: Version, ID: &r.id}
	if r.err != nil {
		w.Error = AsError(r.err)
	} else {
		w.Result = r.result
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshaling response: %w", err)
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	if w.ID != nil {
		r.id = *w.ID
	}
	r.result = w.Result
	if w.Error != nil {
		r.err = w.Error
	}
	return nil
}

// Notification is a request for which a response cannot occur, and as such
// it has no ID.
type Notification struct {
	method string
	params json.RawMessage
}

// compile time check whether the Notification implements a json.Marshaler and json.Unmarshaler interfaces.
var (
	_ json.Marshaler   = (*Notification)(nil)
	_ json.Unmarshaler = (*Notification)(nil)
)

// NewNotification constructs a new Notification message for the supplied
// method and parameters.
func NewNotification(method string, params interface{}) (*Notification, error) {
	p, err := marshalInterface(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling notification params: %w", err)
	}
	return &Notification{method: method, params: p}, nil
}

func (n *Notification) Method() string          { return n.method }
func (n *Notification) Params() json.RawMessage { return n.params }
func (n *Notification) isJSONRPC2Message()      {}
func (n *Notification) isJSONRPC2Request()      {}

// MarshalJSON implements json.Marshaler.
func (n *Notification) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(wireRequest{
		JSONRPC: Version,
		Method:  n.method,
		Params:  n.params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling notification: %w", err)
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("unmarshaling notification: %w", err)
	}
	n.method = w.Method
	n.params = w.Params
	return nil
}

// combined is the union of every field that can appear on the wire; it lets
// DecodeMessage sniff an incoming frame's kind before committing to a
// concrete message type.
type combined struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// DecodeMessage decodes a raw wire frame into the concrete Message it
// represents. A frame carrying Method and ID is a *Request; Method with no
// ID is a *Notification; ID with no Method is a *Response.
func DecodeMessage(data []byte) (Message, error) {
	var c combined
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, Errorf(ParseError, "decoding jsonrpc2 frame: %v", err)
	}
	switch {
	case c.Method != "" && c.ID != nil:
		return &Request{id: *c.ID, method: c.Method, params: c.Params}, nil
	case c.Method != "":
		return &Notification{method: c.Method, params: c.Params}, nil
	case c.ID != nil:
		resp := &Response{id: *c.ID, result: c.Result}
		if c.Error != nil {
			resp.err = c.Error
		}
		return resp, nil
	default:
		return nil, Errorf(InvalidRequest, "frame has neither method nor id")
	}
}

func marshalInterface(obj interface{}) (json.RawMessage, error) {
	if obj == nil {
		return nil, nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
