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
	"crypto/tls"
	"io"
	"net"
	"time"
)

// transportKind tags the active stream variant. The zero value is the plain
// TCP variant.
type transportKind int

const (
	transportPlain transportKind = iota
	transportTLS
)

// transport is the closed set of stream variants a connection runs on:
// plain TCP or TLS over TCP. No further variants exist, data operations
// dispatch on the tag. The raw socket is kept for both variants because
// deadlines and teardown act on the socket itself.
type transport struct {
	kind transportKind
	sock net.Conn
	tls  *tls.Conn
}

func newPlainTransport(sock net.Conn) transport {
	return transport{kind: transportPlain, sock: sock}
}

func newTLSTransport(sock net.Conn, tlsConn *tls.Conn) transport {
	return transport{kind: transportTLS, sock: sock, tls: tlsConn}
}

// write pushes all of p to the active stream.
func (t *transport) write(p []byte) error {
	var (
		n   int
		err error
	)
	switch t.kind {
	case transportTLS:
		n, err = t.tls.Write(p)
	default:
		n, err = t.sock.Write(p)
	}
	if err != nil {
		return err
	}
	if n < len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// read fills all of p from the active stream. A stream that ends early
// yields io.ErrUnexpectedEOF, the contents of p are then undefined.
func (t *transport) read(p []byte) error {
	var err error
	switch t.kind {
	case transportTLS:
		_, err = io.ReadFull(t.tls, p)
	default:
		_, err = io.ReadFull(t.sock, p)
	}
	return err
}

// setDeadline applies the absolute read and write deadline to the raw
// socket. The TLS variant inherits it, record processing sits on top of the
// same socket.
func (t *transport) setDeadline(deadline time.Time) error {
	return t.sock.SetDeadline(deadline)
}

// close tears down the raw socket. The TLS variant sends no close notify.
func (t *transport) close() error {
	return t.sock.Close()
}

func (t *transport) localAddr() net.Addr {
	return t.sock.LocalAddr()
}

func (t *transport) remoteAddr() net.Addr {
	return t.sock.RemoteAddr()
}
