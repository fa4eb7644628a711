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

// Package auth implements the credential handshake a fresh node connection
// runs before it is handed to callers. Passwords travel as bcrypt
// credentials, never in the clear.
package auth

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"trpc.group/trpc-go/tkv/buffer"
	"trpc.group/trpc-go/tkv/internal/proto"
)

// Admin command bytes.
const (
	CmdAuthenticate   = 0
	CmdChangePassword = 4
)

// Field identifiers carried in admin requests.
const (
	FieldUser          = 0
	FieldOldCredential = 2
	FieldCredential    = 3
)

// Cost is the bcrypt cost used when hashing a password into a credential.
// The server verifies credentials with a constant time bcrypt comparison.
const Cost = 10

const (
	preambleSize    = 16
	fieldHeaderSize = 5
)

var (
	// ErrEmptyUser is returned when a command is issued without a user name.
	ErrEmptyUser = errors.New("auth: user must not be empty")
	// ErrProtocol is returned when the server response violates the admin
	// message layout.
	ErrProtocol = errors.New("auth: malformed admin response")
)

// Session is the view of a node connection an admin command needs: the
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

// Code is a server result code for an admin command.
type Code uint8

// Result codes the server answers admin commands with.
const (
	CodeOK                Code = 0
	CodeNotSupported      Code = 51
	CodeNotEnabled        Code = 52
	CodeInvalidUser       Code = 60
	CodeInvalidPassword   Code = 62
	CodeInvalidCredential Code = 65
	CodeNotAuthenticated  Code = 80
)

// String returns a short description of the result code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotSupported:
		return "security not supported"
	case CodeNotEnabled:
		return "security not enabled"
	case CodeInvalidUser:
		return "invalid user"
	case CodeInvalidPassword:
		return "invalid password"
	case CodeInvalidCredential:
		return "invalid credential"
	case CodeNotAuthenticated:
		return "not authenticated"
	default:
		return fmt.Sprintf("result code %d", uint8(c))
	}
}

// Error is a rejection the server answered an admin command with.
type Error struct {
	Code Code
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("auth: server rejected command: %s (code %d)", e.Code, uint8(e.Code))
}

// Authenticate runs the credential handshake for user on the session. A nil
// return means the server accepted the credentials.
func Authenticate(s Session, user, password string) error {
	if user == "" {
		return ErrEmptyUser
	}
	cred, err := credential(password)
	if err != nil {
		return err
	}
	return run(s, CmdAuthenticate, []field{
		{FieldUser, []byte(user)},
		{FieldCredential, cred},
	})
}

// ChangePassword replaces the password of user on the server. The session
// must already be authenticated as that user.
func ChangePassword(s Session, user, oldPassword, newPassword string) error {
	if user == "" {
		return ErrEmptyUser
	}
	oldCred, err := credential(oldPassword)
	if err != nil {
		return err
	}
	newCred, err := credential(newPassword)
	if err != nil {
		return err
	}
	return run(s, CmdChangePassword, []field{
		{FieldUser, []byte(user)},
		{FieldOldCredential, oldCred},
		{FieldCredential, newCred},
	})
}

type field struct {
	id      uint8
	payload []byte
}

func credential(password string) ([]byte, error) {
	cred, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return nil, errors.Wrap(err, "auth: hash password")
	}
	return cred, nil
}

func run(s Session, cmd uint8, fields []field) error {
	if err := writeRequest(s, cmd, fields); err != nil {
		return err
	}
	return readResponse(s)
}

// writeRequest stages an admin request and flushes it. The payload is a 16
// byte preamble carrying the command byte and field count, followed by the
// fields, each behind a five byte header of payload size and identifier.
func writeRequest(s Session, cmd uint8, fields []field) error {
	size := preambleSize
	for _, f := range fields {
		size += fieldHeaderSize + len(f.payload)
	}
	b := s.Buffer()
	if err := b.Resize(proto.HeaderSize + size); err != nil {
		return err
	}
	if err := b.ResetOffset(); err != nil {
		return err
	}
	if err := proto.NewHeader(proto.TypeAdmin, uint64(size)).Marshal(b.Data()); err != nil {
		return err
	}
	if err := b.Skip(proto.HeaderSize); err != nil {
		return err
	}
	if err := b.WriteUint8(cmd); err != nil {
		return err
	}
	if err := b.WriteUint8(uint8(len(fields))); err != nil {
		return err
	}
	if err := b.WriteZero(preambleSize - 2); err != nil {
		return err
	}
	for _, f := range fields {
		// The field size counts the identifier byte plus the payload.
		if err := b.WriteUint32(uint32(len(f.payload) + 1)); err != nil {
			return err
		}
		if err := b.WriteUint8(f.id); err != nil {
			return err
		}
		if err := b.WriteBytes(f.payload); err != nil {
			return err
		}
	}
	return s.Flush()
}

// readResponse reads an admin response and maps its result code. The result
// code sits in the second byte of the response preamble.
func readResponse(s Session) error {
	if err := s.ReadBuffer(proto.HeaderSize); err != nil {
		return err
	}
	b := s.Buffer()
	h, err := proto.ParseHeader(b.Data())
	if err != nil {
		return err
	}
	if h.Type != proto.TypeAdmin {
		return errors.Wrapf(ErrProtocol, "unexpected message type %d", h.Type)
	}
	if h.Size < preambleSize {
		return errors.Wrapf(ErrProtocol, "admin response of %d bytes", h.Size)
	}
	if err := s.ReadBuffer(int(h.Size)); err != nil {
		return err
	}
	if err := b.Skip(1); err != nil {
		return err
	}
	code, err := b.ReadUint8()
	if err != nil {
		return err
	}
	if c := Code(code); c != CodeOK {
		return &Error{Code: c}
	}
	return nil
}
