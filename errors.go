//
//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2023 THL A29 Limited, a Tencent company.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package tkv

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// ErrClosed is the cause carried by errors for operations on a closed
// connection.
var ErrClosed = errors.New("tkv: connection is closed")

// Kind classifies the failures a node connection can produce.
type Kind int

// All failure kinds.
const (
	// KindUnknown is the zero value, no classification.
	KindUnknown Kind = iota
	// KindDial reports that the TCP connection could not be established.
	KindDial
	// KindTLSHandshake reports that the TLS handshake with the node failed.
	KindTLSHandshake
	// KindAuthentication reports that the node rejected the credential
	// handshake.
	KindAuthentication
	// KindIO reports a failed read or write, including expired deadlines.
	KindIO
	// KindTimeoutConfig reports that a deadline could not be applied to
	// the socket.
	KindTimeoutConfig
)

// String returns the failure kind as a short phrase.
func (k Kind) String() string {
	switch k {
	case KindDial:
		return "dial"
	case KindTLSHandshake:
		return "tls handshake"
	case KindAuthentication:
		return "authentication"
	case KindIO:
		return "io"
	case KindTimeoutConfig:
		return "timeout config"
	default:
		return "unknown"
	}
}

// Error is the error type a node connection returns. Callers branch on the
// Kind, the address tells them which node misbehaved.
type Error struct {
	Kind Kind
	Addr string

	cause error
}

func newError(kind Kind, addr string, cause error) *Error {
	return &Error{Kind: kind, Addr: addr, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("tkv: %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("tkv: %s %s: %v", e.Kind, e.Addr, e.cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors of the same Kind, so that callers can test with
// errors.Is(err, &Error{Kind: KindIO}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Timeout reports whether the failure was caused by an expired socket
// deadline.
func (e *Error) Timeout() bool {
	var nerr net.Error
	if errors.As(e.cause, &nerr) {
		return nerr.Timeout()
	}
	return false
}

// KindOf returns the failure kind of err, or KindUnknown when err was not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
