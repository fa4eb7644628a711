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

// Package tkv provides the blocking per node connection layer of a key-value
// store client: dialing, optional TLS, the credential handshake, idle
// accounting and a reusable staging buffer. A Connection belongs to one
// goroutine at a time, pools own the lifecycle and hand connections out.
package tkv

import (
	"trpc.group/trpc-go/tkv/auth"
)

// Authenticator runs the credential handshake on a freshly established
// connection before it is handed to callers. The default performs the
// bcrypt credential handshake from the auth package.
type Authenticator func(c *Connection, user, password string) error

func authenticate(c *Connection, user, password string) error {
	return auth.Authenticate(c, user, password)
}
