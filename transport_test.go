// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package tkv

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportPlain(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	go func() {
		io.Copy(server, server)
	}()

	tr := newPlainTransport(client)
	assert.Equal(t, transportPlain, tr.kind)
	assert.Equal(t, client.LocalAddr(), tr.localAddr())
	assert.Equal(t, client.RemoteAddr(), tr.remoteAddr())

	require.Nil(t, tr.write([]byte("ping")))
	buf := make([]byte, 4)
	require.Nil(t, tr.read(buf))
	assert.Equal(t, "ping", string(buf))

	require.Nil(t, tr.close())
	assert.NotNil(t, tr.write([]byte("x")))
	assert.NotNil(t, tr.read(buf))
}

func TestTransportTLS(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer serverRaw.Close()

	cert, err := tls.LoadX509KeyPair("testdata/server.crt", "testdata/server.key")
	require.Nil(t, err)
	srv := tls.Server(serverRaw, &tls.Config{Certificates: []tls.Certificate{cert}})
	go func() {
		if err := srv.Handshake(); err != nil {
			return
		}
		io.Copy(srv, srv)
	}()

	tlsConn := tls.Client(clientRaw, &tls.Config{InsecureSkipVerify: true})
	require.Nil(t, tlsConn.Handshake())

	tr := newTLSTransport(clientRaw, tlsConn)
	assert.Equal(t, transportTLS, tr.kind)

	require.Nil(t, tr.write([]byte("ping")))
	buf := make([]byte, 4)
	require.Nil(t, tr.read(buf))
	assert.Equal(t, "ping", string(buf))

	// Teardown acts on the raw socket, no close notify is exchanged.
	require.Nil(t, tr.close())
	assert.NotNil(t, tr.write([]byte("x")))
}

func TestTransportDeadline(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tr := newPlainTransport(client)
	require.Nil(t, tr.setDeadline(time.Now().Add(20*time.Millisecond)))

	err := tr.read(make([]byte, 1))
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded))

	// A zero deadline clears the limit again.
	require.Nil(t, tr.setDeadline(time.Time{}))
	go func() {
		server.Write([]byte("k"))
	}()
	buf := make([]byte, 1)
	require.Nil(t, tr.read(buf))
	assert.Equal(t, "k", string(buf))

	require.Nil(t, tr.close())
}

func TestTransportShortRead(t *testing.T) {
	client, server := net.Pipe()

	tr := newPlainTransport(client)
	go func() {
		server.Write([]byte("ab"))
		server.Close()
	}()

	err := tr.read(make([]byte, 5))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.Nil(t, tr.close())
}
