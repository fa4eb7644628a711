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

// Package info implements the name/value protocol used to interrogate a
// node about its state, such as build version, features and health.
package info

import (
	"strings"

	"github.com/pkg/errors"
	"trpc.group/trpc-go/tkv/buffer"
	"trpc.group/trpc-go/tkv/internal/proto"
)

var (
	// ErrInvalidName is returned when a requested name contains a separator
	// character and would corrupt the request framing.
	ErrInvalidName = errors.New("info: name contains a separator")
	// ErrProtocol is returned when the server response violates the info
	// message layout.
	ErrProtocol = errors.New("info: malformed info response")
)

// Session is the view of a node connection an info request needs: the
// shared staging buffer plus blocking flush and fill primitives.
type Session interface {
	// Buffer returns the staging buffer requests are encoded into and
	// responses are decoded from.
	Buffer() *buffer.Buffer
	// Flush writes the staged buffer contents to the node.
	Flush() error
	// ReadBuffer replaces the staged contents with exactly size bytes read
	// from the node and rewinds the buffer cursor.
	ReadBuffer(size int) error
}

// Request asks the node for the values of the given names and returns them
// as a name to value map. With no names the node answers with everything it
// knows. Names the node does not recognize are absent from the result.
//
// On the wire each requested name is terminated by a newline, and the node
// answers with one tab separated name value pair per line.
func Request(s Session, names ...string) (map[string]string, error) {
	size := 0
	for _, n := range names {
		if strings.ContainsAny(n, "\n\t") {
			return nil, errors.Wrapf(ErrInvalidName, "%q", n)
		}
		size += len(n) + 1
	}

	b := s.Buffer()
	if err := b.Resize(proto.HeaderSize + size); err != nil {
		return nil, err
	}
	if err := b.ResetOffset(); err != nil {
		return nil, err
	}
	if err := proto.NewHeader(proto.TypeInfo, uint64(size)).Marshal(b.Data()); err != nil {
		return nil, err
	}
	if err := b.Skip(proto.HeaderSize); err != nil {
		return nil, err
	}
	for _, n := range names {
		if err := b.WriteString(n); err != nil {
			return nil, err
		}
		if err := b.WriteUint8('\n'); err != nil {
			return nil, err
		}
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}

	if err := s.ReadBuffer(proto.HeaderSize); err != nil {
		return nil, err
	}
	h, err := proto.ParseHeader(b.Data())
	if err != nil {
		return nil, err
	}
	if h.Type != proto.TypeInfo {
		return nil, errors.Wrapf(ErrProtocol, "unexpected message type %d", h.Type)
	}

	values := make(map[string]string, len(names))
	if h.Size == 0 {
		return values, nil
	}
	if err := s.ReadBuffer(int(h.Size)); err != nil {
		return nil, err
	}
	body, err := b.ReadString(b.Len())
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		// A line without a tab is a name the node answered without a value.
		name, value, _ := strings.Cut(line, "\t")
		values[name] = value
	}
	return values, nil
}
