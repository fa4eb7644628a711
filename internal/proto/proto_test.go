// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package proto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/tkv/internal/proto"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := proto.NewHeader(proto.TypeAdmin, 1234)
	var wire [proto.HeaderSize]byte
	require.Nil(t, h.Marshal(wire[:]))
	assert.Equal(t, []byte{2, 2, 0, 0, 0, 0, 0x04, 0xD2}, wire[:])

	got, err := proto.ParseHeader(wire[:])
	require.Nil(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderLayout(t *testing.T) {
	h := proto.NewHeader(proto.TypeInfo, 0x010203)
	var wire [proto.HeaderSize]byte
	require.Nil(t, h.Marshal(wire[:]))

	// version, type, then a six byte big-endian size.
	assert.Equal(t, byte(proto.Version), wire[0])
	assert.Equal(t, byte(proto.TypeInfo), wire[1])
	assert.Equal(t, []byte{0, 0, 0, 1, 2, 3}, wire[2:])
}

func TestMarshalBounds(t *testing.T) {
	h := proto.NewHeader(proto.TypeAdmin, 8)
	short := make([]byte, proto.HeaderSize-1)
	assert.ErrorIs(t, h.Marshal(short), proto.ErrShortHeader)

	big := proto.NewHeader(proto.TypeAdmin, proto.MaxPayload+1)
	var wire [proto.HeaderSize]byte
	assert.ErrorIs(t, big.Marshal(wire[:]), proto.ErrPayloadSize)
}

func TestParseHeaderBounds(t *testing.T) {
	_, err := proto.ParseHeader(make([]byte, proto.HeaderSize-1))
	assert.ErrorIs(t, err, proto.ErrShortHeader)

	var wire [proto.HeaderSize]byte
	require.Nil(t, proto.NewHeader(proto.TypeAdmin, 8).Marshal(wire[:]))

	wire[0] = 9
	_, err = proto.ParseHeader(wire[:])
	assert.ErrorIs(t, err, proto.ErrVersion)

	wire[0] = proto.Version
	wire[2] = 0xFF
	_, err = proto.ParseHeader(wire[:])
	assert.ErrorIs(t, err, proto.ErrPayloadSize)
}
