// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package auth_test

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"trpc.group/trpc-go/tkv/auth"
	"trpc.group/trpc-go/tkv/buffer"
	"trpc.group/trpc-go/tkv/internal/proto"
)

type fakeSession struct {
	buf      *buffer.Buffer
	frames   [][]byte
	response []byte
	flushErr error
	readErr  error
}

func newFakeSession(response []byte) *fakeSession {
	return &fakeSession{buf: buffer.New(0), response: response}
}

func (s *fakeSession) Buffer() *buffer.Buffer { return s.buf }

func (s *fakeSession) Flush() error {
	if s.flushErr != nil {
		return s.flushErr
	}
	frame := make([]byte, s.buf.Len())
	copy(frame, s.buf.Data())
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSession) ReadBuffer(size int) error {
	if s.readErr != nil {
		return s.readErr
	}
	if len(s.response) < size {
		return io.ErrUnexpectedEOF
	}
	if err := s.buf.Resize(size); err != nil {
		return err
	}
	copy(s.buf.Data(), s.response[:size])
	s.response = s.response[size:]
	return s.buf.ResetOffset()
}

func adminResponse(t *testing.T, code auth.Code) []byte {
	t.Helper()
	payload := make([]byte, 16)
	payload[1] = byte(code)
	resp := make([]byte, proto.HeaderSize+len(payload))
	require.Nil(t, proto.NewHeader(proto.TypeAdmin, uint64(len(payload))).Marshal(resp))
	copy(resp[proto.HeaderSize:], payload)
	return resp
}

type reqField struct {
	id      byte
	payload []byte
}

func parseAdminRequest(t *testing.T, frame []byte) (byte, []reqField) {
	t.Helper()
	h, err := proto.ParseHeader(frame)
	require.Nil(t, err)
	require.Equal(t, uint8(proto.TypeAdmin), h.Type)
	body := frame[proto.HeaderSize:]
	require.Equal(t, uint64(len(body)), h.Size)
	require.GreaterOrEqual(t, len(body), 16)

	cmd := body[0]
	count := int(body[1])
	fields := make([]reqField, 0, count)
	rest := body[16:]
	for i := 0; i < count; i++ {
		require.GreaterOrEqual(t, len(rest), 5)
		size := int(binary.BigEndian.Uint32(rest))
		require.GreaterOrEqual(t, size, 1)
		require.GreaterOrEqual(t, len(rest), 4+size)
		fields = append(fields, reqField{id: rest[4], payload: rest[5 : 4+size]})
		rest = rest[4+size:]
	}
	require.Empty(t, rest)
	return cmd, fields
}

func TestAuthenticate(t *testing.T) {
	s := newFakeSession(adminResponse(t, auth.CodeOK))
	require.Nil(t, auth.Authenticate(s, "joe", "secret"))
	require.Len(t, s.frames, 1)

	cmd, fields := parseAdminRequest(t, s.frames[0])
	assert.Equal(t, byte(auth.CmdAuthenticate), cmd)
	require.Len(t, fields, 2)

	assert.Equal(t, byte(auth.FieldUser), fields[0].id)
	assert.Equal(t, []byte("joe"), fields[0].payload)

	// The password never travels in the clear, only its bcrypt credential.
	assert.Equal(t, byte(auth.FieldCredential), fields[1].id)
	assert.NotContains(t, string(fields[1].payload), "secret")
	assert.Nil(t, bcrypt.CompareHashAndPassword(fields[1].payload, []byte("secret")))
	cost, err := bcrypt.Cost(fields[1].payload)
	require.Nil(t, err)
	assert.Equal(t, auth.Cost, cost)
}

func TestAuthenticateRejected(t *testing.T) {
	s := newFakeSession(adminResponse(t, auth.CodeInvalidCredential))
	err := auth.Authenticate(s, "joe", "wrong")
	require.NotNil(t, err)

	var authErr *auth.Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, auth.CodeInvalidCredential, authErr.Code)
	assert.Contains(t, err.Error(), "invalid credential")
}

func TestAuthenticateEmptyUser(t *testing.T) {
	s := newFakeSession(nil)
	assert.ErrorIs(t, auth.Authenticate(s, "", "secret"), auth.ErrEmptyUser)
	assert.Empty(t, s.frames)
}

func TestChangePassword(t *testing.T) {
	s := newFakeSession(adminResponse(t, auth.CodeOK))
	require.Nil(t, auth.ChangePassword(s, "joe", "old", "new"))
	require.Len(t, s.frames, 1)

	cmd, fields := parseAdminRequest(t, s.frames[0])
	assert.Equal(t, byte(auth.CmdChangePassword), cmd)
	require.Len(t, fields, 3)

	assert.Equal(t, byte(auth.FieldUser), fields[0].id)
	assert.Equal(t, []byte("joe"), fields[0].payload)
	assert.Equal(t, byte(auth.FieldOldCredential), fields[1].id)
	assert.Nil(t, bcrypt.CompareHashAndPassword(fields[1].payload, []byte("old")))
	assert.Equal(t, byte(auth.FieldCredential), fields[2].id)
	assert.Nil(t, bcrypt.CompareHashAndPassword(fields[2].payload, []byte("new")))
}

func TestChangePasswordEmptyUser(t *testing.T) {
	s := newFakeSession(nil)
	assert.ErrorIs(t, auth.ChangePassword(s, "", "old", "new"), auth.ErrEmptyUser)
	assert.Empty(t, s.frames)
}

func TestSessionErrorsPropagate(t *testing.T) {
	s := newFakeSession(nil)
	s.flushErr = errors.New("boom")
	assert.ErrorIs(t, auth.Authenticate(s, "joe", "secret"), s.flushErr)

	s = newFakeSession(nil)
	s.readErr = errors.New("reset")
	assert.ErrorIs(t, auth.Authenticate(s, "joe", "secret"), s.readErr)
}

func TestMalformedResponse(t *testing.T) {
	// Envelope with the wrong message type.
	resp := adminResponse(t, auth.CodeOK)
	resp[1] = proto.TypeInfo
	s := newFakeSession(resp)
	assert.ErrorIs(t, auth.Authenticate(s, "joe", "secret"), auth.ErrProtocol)

	// Payload too small to carry a result code.
	short := make([]byte, proto.HeaderSize+4)
	require.Nil(t, proto.NewHeader(proto.TypeAdmin, 4).Marshal(short))
	s = newFakeSession(short)
	assert.ErrorIs(t, auth.Authenticate(s, "joe", "secret"), auth.ErrProtocol)

	// Envelope from a different protocol version.
	bad := adminResponse(t, auth.CodeOK)
	bad[0] = 7
	s = newFakeSession(bad)
	assert.ErrorIs(t, auth.Authenticate(s, "joe", "secret"), proto.ErrVersion)
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "ok", auth.CodeOK.String())
	assert.Equal(t, "invalid user", auth.CodeInvalidUser.String())
	assert.Equal(t, "result code 99", auth.Code(99).String())
}
