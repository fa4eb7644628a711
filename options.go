//
//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2023 Tencent.
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
	"time"

	"trpc.group/trpc-go/tkv/buffer"
)

// Option is the type for a single connection option.
type Option struct {
	f func(*options)
}

type credentials struct {
	user     string
	password string
}

type options struct {
	timeout          time.Duration
	idleTimeout      time.Duration
	reclaimThreshold int
	tlsConfig        *tls.Config
	serverName       string
	creds            *credentials
	authenticator    Authenticator
}

func (o *options) setDefault() {
	o.reclaimThreshold = buffer.DefaultReclaimThreshold
	o.authenticator = authenticate
}

// WithTimeout sets the I/O timeout of the connection. Every socket read and
// write must complete within d, and the initial dial and TLS handshake are
// bounded by it as well. A zero timeout lets operations block until the
// peer or the kernel gives up.
func WithTimeout(d time.Duration) Option {
	return Option{func(o *options) {
		o.timeout = d
	}}
}

// WithIdleTimeout sets how long the connection may sit without traffic
// before IsIdle reports it as stale. A zero value disables idle tracking.
func WithIdleTimeout(d time.Duration) Option {
	return Option{func(o *options) {
		o.idleTimeout = d
	}}
}

// WithTLS runs the connection over TLS with the given configuration. A nil
// config selects an empty one. Unless WithTLSServerName or the config says
// otherwise, the node certificate is verified against the host part of the
// dialed address.
func WithTLS(cfg *tls.Config) Option {
	return Option{func(o *options) {
		if cfg == nil {
			cfg = &tls.Config{}
		}
		o.tlsConfig = cfg
	}}
}

// WithTLSServerName overrides the name the node certificate is verified
// against. Nodes are commonly dialed by IP while their certificates carry a
// shared DNS name.
func WithTLSServerName(name string) Option {
	return Option{func(o *options) {
		o.serverName = name
	}}
}

// WithCredentials makes Connect authenticate as user before the connection
// is handed to callers. Without credentials no handshake is attempted.
func WithCredentials(user, password string) Option {
	return Option{func(o *options) {
		o.creds = &credentials{user: user, password: password}
	}}
}

// WithAuthenticator replaces the handshake run for WithCredentials.
func WithAuthenticator(a Authenticator) Option {
	return Option{func(o *options) {
		o.authenticator = a
	}}
}

// WithBufferReclaimThreshold bounds the backing storage the staging buffer
// keeps across messages. A non-positive value selects the buffer package
// default.
func WithBufferReclaimThreshold(n int) Option {
	return Option{func(o *options) {
		o.reclaimThreshold = n
	}}
}
