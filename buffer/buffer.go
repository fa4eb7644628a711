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

// Package buffer provides the reusable staging buffer that backs a node
// connection. Outbound requests are assembled into it before a flush, and
// inbound responses are read into it before parsing.
package buffer

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// DefaultReclaimThreshold is the backing storage size above which an
	// oversized buffer is shed once a smaller window is requested.
	DefaultReclaimThreshold = 64 * 1024

	// MaxBufferSize caps a single window to guard against corrupted size
	// headers sent by a broken peer.
	MaxBufferSize = 10 * 1024 * 1024
)

var (
	// ErrSizeLimit is returned when a requested window exceeds MaxBufferSize.
	ErrSizeLimit = errors.New("buffer: size exceeds limit")
	// ErrInvalidSize is returned when a requested size is negative.
	ErrInvalidSize = errors.New("buffer: invalid size")
	// ErrOutOfRange is returned when a cursor operation passes the end of the window.
	ErrOutOfRange = errors.New("buffer: offset out of range")
)

// Buffer is a contiguous byte window with a single cursor shared by encode
// and decode operations. It is not safe for concurrent use, the owning
// connection serializes access to it.
type Buffer struct {
	data    []byte
	offset  int
	reclaim int
}

// New creates a buffer whose backing storage is shed back to threshold bytes
// whenever it has grown beyond the threshold and a window no larger than the
// threshold is requested again. A non-positive threshold selects
// DefaultReclaimThreshold.
func New(threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultReclaimThreshold
	}
	return &Buffer{reclaim: threshold}
}

// Len returns the current window size.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Offset returns the cursor position.
func (b *Buffer) Offset() int {
	return b.offset
}

// Data returns the raw window. The slice stays valid until the next Resize.
func (b *Buffer) Data() []byte {
	return b.data
}

// Resize sets the window to exactly size bytes. Contents up to the smaller
// of the old and new sizes are preserved. The cursor is left untouched,
// callers that restart decoding pair Resize with ResetOffset.
func (b *Buffer) Resize(size int) error {
	switch {
	case size < 0:
		return errors.Wrapf(ErrInvalidSize, "resize to %d", size)
	case size > MaxBufferSize:
		// Corrupted size headers can claim absurd lengths. Refuse early
		// instead of handing them to the allocator.
		return errors.Wrapf(ErrSizeLimit, "resize to %d, limit %d", size, MaxBufferSize)
	case size <= b.reclaim && cap(b.data) > b.reclaim:
		next := make([]byte, size, b.reclaim)
		copy(next, b.data)
		b.data = next
	case size <= cap(b.data):
		b.data = b.data[:size]
	default:
		next := make([]byte, size)
		copy(next, b.data)
		b.data = next
	}
	return nil
}

// ResetOffset rewinds the cursor to the start of the window.
func (b *Buffer) ResetOffset() error {
	b.offset = 0
	return nil
}

// Skip advances the cursor by n bytes without touching the window.
func (b *Buffer) Skip(n int) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidSize, "skip %d", n)
	}
	if err := b.require(n); err != nil {
		return err
	}
	b.offset += n
	return nil
}

// WriteUint8 stores v at the cursor.
func (b *Buffer) WriteUint8(v uint8) error {
	if err := b.require(1); err != nil {
		return err
	}
	b.data[b.offset] = v
	b.offset++
	return nil
}

// WriteUint16 stores v at the cursor in big-endian byte order.
func (b *Buffer) WriteUint16(v uint16) error {
	if err := b.require(2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.data[b.offset:], v)
	b.offset += 2
	return nil
}

// WriteUint32 stores v at the cursor in big-endian byte order.
func (b *Buffer) WriteUint32(v uint32) error {
	if err := b.require(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b.data[b.offset:], v)
	b.offset += 4
	return nil
}

// WriteUint64 stores v at the cursor in big-endian byte order.
func (b *Buffer) WriteUint64(v uint64) error {
	if err := b.require(8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b.data[b.offset:], v)
	b.offset += 8
	return nil
}

// WriteBytes copies p to the cursor.
func (b *Buffer) WriteBytes(p []byte) error {
	if err := b.require(len(p)); err != nil {
		return err
	}
	copy(b.data[b.offset:], p)
	b.offset += len(p)
	return nil
}

// WriteString copies s to the cursor without a length prefix.
func (b *Buffer) WriteString(s string) error {
	if err := b.require(len(s)); err != nil {
		return err
	}
	copy(b.data[b.offset:], s)
	b.offset += len(s)
	return nil
}

// WriteZero stores n zero bytes at the cursor. A reused window keeps stale
// content, so reserved regions must be cleared explicitly.
func (b *Buffer) WriteZero(n int) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidSize, "write %d zero bytes", n)
	}
	if err := b.require(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		b.data[b.offset+i] = 0
	}
	b.offset += n
	return nil
}

// ReadUint8 returns the byte at the cursor.
func (b *Buffer) ReadUint8() (uint8, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}
	v := b.data[b.offset]
	b.offset++
	return v, nil
}

// ReadUint16 returns the big-endian uint16 at the cursor.
func (b *Buffer) ReadUint16() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(b.data[b.offset:])
	b.offset += 2
	return v, nil
}

// ReadUint32 returns the big-endian uint32 at the cursor.
func (b *Buffer) ReadUint32() (uint32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b.data[b.offset:])
	b.offset += 4
	return v, nil
}

// ReadUint64 returns the big-endian uint64 at the cursor.
func (b *Buffer) ReadUint64() (uint64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b.data[b.offset:])
	b.offset += 8
	return v, nil
}

// ReadBytes returns a copy of the next n bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "read %d bytes", n)
	}
	if err := b.require(n); err != nil {
		return nil, err
	}
	p := make([]byte, n)
	copy(p, b.data[b.offset:])
	b.offset += n
	return p, nil
}

// ReadString returns the next n bytes as a string.
func (b *Buffer) ReadString(n int) (string, error) {
	if n < 0 {
		return "", errors.Wrapf(ErrInvalidSize, "read %d bytes", n)
	}
	if err := b.require(n); err != nil {
		return "", err
	}
	s := string(b.data[b.offset : b.offset+n])
	b.offset += n
	return s, nil
}

func (b *Buffer) require(n int) error {
	if b.offset+n > len(b.data) {
		return errors.Wrapf(ErrOutOfRange, "need %d bytes at offset %d, window %d", n, b.offset, len(b.data))
	}
	return nil
}
