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

// Package proto implements the fixed eight byte envelope that frames every
// message exchanged with a node: one version byte, one message type byte and
// a 48 bit big-endian payload size.
package proto

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// Version is the only envelope version the client speaks.
	Version = 2

	// HeaderSize is the wire size of the envelope.
	HeaderSize = 8

	// MaxPayload is the largest payload the client accepts in one message.
	MaxPayload = 10 * 1024 * 1024
)

// Message types carried by the envelope.
const (
	TypeInfo  = 1
	TypeAdmin = 2
)

const sizeMask = 1<<48 - 1

var (
	// ErrShortHeader is returned when fewer than HeaderSize bytes are given.
	ErrShortHeader = errors.New("proto: header shorter than eight bytes")
	// ErrVersion is returned when the peer speaks an unknown envelope version.
	ErrVersion = errors.New("proto: unsupported envelope version")
	// ErrPayloadSize is returned when the payload size field exceeds MaxPayload.
	ErrPayloadSize = errors.New("proto: payload size out of range")
)

// Header is the decoded form of the envelope.
type Header struct {
	Version uint8
	Type    uint8
	Size    uint64
}

// NewHeader returns an envelope of the current version.
func NewHeader(typ uint8, size uint64) Header {
	return Header{Version: Version, Type: typ, Size: size}
}

// Marshal packs the envelope into the first HeaderSize bytes of dst.
func (h Header) Marshal(dst []byte) error {
	if len(dst) < HeaderSize {
		return ErrShortHeader
	}
	if h.Size > MaxPayload {
		return errors.Wrapf(ErrPayloadSize, "size %d, limit %d", h.Size, MaxPayload)
	}
	binary.BigEndian.PutUint64(dst, uint64(h.Version)<<56|uint64(h.Type)<<48|h.Size)
	return nil
}

// ParseHeader decodes an envelope from the first HeaderSize bytes of src.
// The version and payload size are validated, the message type is left to
// the caller.
func ParseHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	v := binary.BigEndian.Uint64(src)
	h := Header{
		Version: uint8(v >> 56),
		Type:    uint8(v >> 48),
		Size:    v & sizeMask,
	}
	if h.Version != Version {
		return Header{}, errors.Wrapf(ErrVersion, "version %d", h.Version)
	}
	if h.Size > MaxPayload {
		return Header{}, errors.Wrapf(ErrPayloadSize, "size %d, limit %d", h.Size, MaxPayload)
	}
	return h, nil
}
