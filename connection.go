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
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"trpc.group/trpc-go/tkv/auth"
	"trpc.group/trpc-go/tkv/buffer"
	"trpc.group/trpc-go/tkv/info"
	"trpc.group/trpc-go/tkv/log"
	"trpc.group/trpc-go/tkv/metrics"
)

var (
	_ auth.Session = (*Connection)(nil)
	_ info.Session = (*Connection)(nil)
)

// Connection is a blocking connection to a single node. It belongs to one
// goroutine at a time, only Close may race with an in-flight operation.
// Cancellation is expressed through socket deadlines, not contexts: the
// owner arms a deadline and the blocked operation fails with a timeout.
type Connection struct {
	tr           transport
	addr         string
	timeout      time.Duration
	idleTimeout  time.Duration
	idleDeadline time.Time
	buf          *buffer.Buffer
	bytesRead    int
	closed       atomic.Bool
}

// Connect establishes a connection to the node at addr, upgrades it to TLS
// and runs the credential handshake as configured, and returns it ready for
// traffic. A connection whose handshake fails never escapes, its socket is
// closed before Connect returns.
func Connect(addr string, opts ...Option) (*Connection, error) {
	var o options
	o.setDefault()
	for _, opt := range opts {
		opt.f(&o)
	}
	if o.authenticator == nil {
		o.authenticator = authenticate
	}

	sock, err := net.DialTimeout("tcp", addr, o.timeout)
	if err != nil {
		metrics.Add(metrics.DialFails, 1)
		return nil, newError(KindDial, addr, err)
	}

	c := &Connection{
		addr:        addr,
		timeout:     o.timeout,
		idleTimeout: o.idleTimeout,
		buf:         buffer.New(o.reclaimThreshold),
	}
	if o.tlsConfig != nil {
		tlsConn, err := upgradeTLS(sock, addr, &o)
		if err != nil {
			sock.Close()
			metrics.Add(metrics.TLSHandshakeFails, 1)
			return nil, newError(KindTLSHandshake, addr, err)
		}
		c.tr = newTLSTransport(sock, tlsConn)
	} else {
		c.tr = newPlainTransport(sock)
	}
	c.Refresh()

	if o.creds != nil {
		if err := o.authenticator(c, o.creds.user, o.creds.password); err != nil {
			c.closed.Store(true)
			if cerr := c.tr.close(); cerr != nil {
				log.Debugf("tkv: close connection to %s after failed handshake: %v", addr, cerr)
			}
			metrics.Add(metrics.AuthFails, 1)
			return nil, wrapAuthError(addr, err)
		}
		c.Refresh()
	}

	metrics.Add(metrics.ConnsOpened, 1)
	log.Debugf("tkv: connected to %s", addr)
	return c, nil
}

// upgradeTLS runs the client side handshake on a freshly dialed socket. The
// handshake is bounded by the I/O timeout through a socket deadline, which
// is cleared again before the connection enters service.
func upgradeTLS(sock net.Conn, addr string, o *options) (*tls.Conn, error) {
	tlsConn := tls.Client(sock, fixTLSConfig(o, addr))
	if o.timeout > 0 {
		if err := sock.SetDeadline(time.Now().Add(o.timeout)); err != nil {
			return nil, err
		}
	}
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	if o.timeout > 0 {
		if err := sock.SetDeadline(time.Time{}); err != nil {
			return nil, err
		}
	}
	return tlsConn, nil
}

// fixTLSConfig decides the name the node certificate is verified against:
// an explicit override wins, then whatever the config carries, then the
// host part of the dialed address.
func fixTLSConfig(o *options, addr string) *tls.Config {
	config := o.tlsConfig
	if o.serverName != "" {
		// Make a copy to avoid polluting the caller's config.
		c := config.Clone()
		c.ServerName = o.serverName
		return c
	}
	if config.ServerName != "" {
		return config
	}
	// If no ServerName is set, infer the ServerName
	// from the hostname we're connecting to.
	c := config.Clone()
	colonPos := strings.LastIndex(addr, ":")
	if colonPos == -1 {
		colonPos = len(addr)
	}
	c.ServerName = addr[:colonPos]
	return c
}

func wrapAuthError(addr string, err error) error {
	// A transport breakdown during the handshake keeps its own kind.
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindAuthentication, addr, err)
}

// Write sends p to the node, blocking until all of it is on the wire, the
// I/O timeout expires, or the transport fails.
func (c *Connection) Write(p []byte) error {
	if c.closed.Load() {
		return newError(KindIO, c.addr, ErrClosed)
	}
	if err := c.applyTimeout(); err != nil {
		return err
	}
	if err := c.tr.write(p); err != nil {
		return newError(KindIO, c.addr, err)
	}
	metrics.Add(metrics.Writes, 1)
	metrics.Add(metrics.WriteBytes, uint64(len(p)))
	c.Refresh()
	return nil
}

// Flush sends the staged buffer contents to the node.
func (c *Connection) Flush() error {
	if c.closed.Load() {
		return newError(KindIO, c.addr, ErrClosed)
	}
	if err := c.applyTimeout(); err != nil {
		return err
	}
	if err := c.tr.write(c.buf.Data()); err != nil {
		return newError(KindIO, c.addr, err)
	}
	metrics.Add(metrics.Flushes, 1)
	metrics.Add(metrics.FlushBytes, uint64(c.buf.Len()))
	c.Refresh()
	return nil
}

// Read fills p with exactly len(p) bytes from the node. Nothing is
// accounted on failure: the bytes read counter keeps its pre-call value and
// the contents of p are undefined.
func (c *Connection) Read(p []byte) error {
	if c.closed.Load() {
		return newError(KindIO, c.addr, ErrClosed)
	}
	if err := c.applyTimeout(); err != nil {
		return err
	}
	if err := c.tr.read(p); err != nil {
		return newError(KindIO, c.addr, err)
	}
	c.bytesRead += len(p)
	metrics.Add(metrics.Reads, 1)
	metrics.Add(metrics.ReadBytes, uint64(len(p)))
	c.Refresh()
	return nil
}

// ReadBuffer replaces the staging buffer contents with exactly size bytes
// from the node and rewinds the buffer cursor, ready for decoding.
func (c *Connection) ReadBuffer(size int) error {
	if c.closed.Load() {
		return newError(KindIO, c.addr, ErrClosed)
	}
	if err := c.buf.Resize(size); err != nil {
		return newError(KindIO, c.addr, err)
	}
	metrics.Add(metrics.BufferResizes, 1)
	if err := c.applyTimeout(); err != nil {
		return err
	}
	if err := c.tr.read(c.buf.Data()); err != nil {
		return newError(KindIO, c.addr, err)
	}
	c.bytesRead += size
	if err := c.buf.ResetOffset(); err != nil {
		return newError(KindIO, c.addr, err)
	}
	metrics.Add(metrics.Reads, 1)
	metrics.Add(metrics.ReadBytes, uint64(size))
	c.Refresh()
	return nil
}

// Close tears down the connection. Teardown problems are logged and
// swallowed, Close always succeeds and is safe to call more than once.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.tr.close(); err != nil {
		log.Debugf("tkv: close connection to %s: %v", c.addr, err)
	}
	metrics.Add(metrics.ConnsClosed, 1)
	return nil
}

// SetTimeout replaces the I/O timeout and applies it to the socket at once.
// A zero duration clears the deadline, operations then block indefinitely.
func (c *Connection) SetTimeout(d time.Duration) error {
	if d < 0 {
		return newError(KindTimeoutConfig, c.addr, errors.Errorf("negative timeout %v", d))
	}
	c.timeout = d
	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}
	if err := c.tr.setDeadline(deadline); err != nil {
		return newError(KindTimeoutConfig, c.addr, err)
	}
	return nil
}

// applyTimeout arms the socket deadline for the next operation.
func (c *Connection) applyTimeout() error {
	if c.timeout <= 0 {
		return nil
	}
	if err := c.tr.setDeadline(time.Now().Add(c.timeout)); err != nil {
		return newError(KindTimeoutConfig, c.addr, err)
	}
	return nil
}

// IsIdle reports whether the connection has gone without traffic for at
// least the configured idle timeout. The wall clock is consulted only here,
// successful operations just re-arm the deadline. The check is advisory:
// without an idle timeout it never trips, and an idle connection is not
// torn down, pools decide what to do with it.
func (c *Connection) IsIdle() bool {
	if c.idleDeadline.IsZero() {
		return false
	}
	return !time.Now().Before(c.idleDeadline)
}

// Refresh re-arms the idle deadline. Every successful operation refreshes
// automatically, owners that touch the connection out of band can refresh
// by hand.
func (c *Connection) Refresh() {
	if c.idleTimeout > 0 {
		c.idleDeadline = time.Now().Add(c.idleTimeout)
	} else {
		c.idleDeadline = time.Time{}
	}
}

// Bookmark zeroes the bytes read counter, starting a new accounting window.
func (c *Connection) Bookmark() {
	c.bytesRead = 0
}

// BytesRead returns the bytes successfully read since the last Bookmark.
// Failed reads leave the counter untouched.
func (c *Connection) BytesRead() int {
	return c.bytesRead
}

// Buffer returns the staging buffer shared with command encoders.
func (c *Connection) Buffer() *buffer.Buffer {
	return c.buf
}

// LocalAddr returns the local socket address.
func (c *Connection) LocalAddr() net.Addr {
	return c.tr.localAddr()
}

// RemoteAddr returns the node's socket address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.tr.remoteAddr()
}
