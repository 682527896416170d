// Copyright 2019 The go-language-server Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpc

import (
	"encoding/json"
	"fmt"

	"golang.org/x/xerrors"
)

// Error represents a jsonrpc2 error.
type Error struct {
	// Code a number indicating the error type that occurred.
	Code Code `json:"code"`

	// Message a string providing a short description of the error.
	Message string `json:"message"`

	// Data a Primitive or Structured value that contains additional
	// information about the error. Can be omitted.
	Data *json.RawMessage `json:"data,omitempty"`

	frame xerrors.Frame
	err   error
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Format implements fmt.Formatter.
func (e *Error) Format(s fmt.State, c rune) {
	xerrors.FormatError(e, s, c)
}

// FormatError implements xerrors.Formatter.
func (e *Error) FormatError(p xerrors.Printer) (next error) {
	if e.Message == "" {
		p.Printf("code=%v", e.Code)
	} else {
		p.Printf("%s (code=%v)", e.Message, e.Code)
	}
	e.frame.Format(p)

	return e.err
}

// Unwrap implements xerrors.Wrapper.
//
// It returns the error underlying the receiver, which may be nil.
func (e *Error) Unwrap() error {
	return e.err
}

// NewError builds an Error for the supplied code and message.
func NewError(c Code, args ...interface{}) *Error {
	e := &Error{
		Code:    c,
		Message: fmt.Sprint(args...),
		frame:   xerrors.Caller(1),
	}
	e.err = xerrors.New(e.Message)

	return e
}

// Errorf builds an Error for the supplied code and formatted message.
func Errorf(c Code, format string, args ...interface{}) *Error {
	e := &Error{
		Code:    c,
		Message: fmt.Sprintf(format, args...),
		frame:   xerrors.Caller(1),
	}
	e.err = xerrors.New(e.Message)

	return e
}

// AsError converts any error into a wire-transmittable *Error. An error that
// is already an *Error is returned unchanged; anything else is wrapped as an
// InternalError, preserving the original error as its cause.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if rerr, ok := err.(*Error); ok {
		return rerr
	}
	return &Error{
		Code:    InternalError,
		Message: err.Error(),
		err:     err,
	}
}
