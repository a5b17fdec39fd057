// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rtlink

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrExecuted is returned by Execute on a request builder that already
// executed. Builders are single-shot; start a new one to retry.
var ErrExecuted = errors.New("rtlink: request already executed")

// ProtocolError is a failure reported by the kernel in reply to a
// request: an NLMSG_ERROR message carrying a nonzero errno. Transport
// failures (socket errors) are returned as-is, not wrapped in a
// ProtocolError.
type ProtocolError struct {
	// Errno is the kernel's errno for the failure, e.g. unix.EEXIST
	// when creating something that exists.
	Errno syscall.Errno

	// Msg is the kernel's extended-ack description of the failure,
	// when one was provided.
	Msg string
}

func (e *ProtocolError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("rtlink: %v (%s)", e.Errno, e.Msg)
	}
	return fmt.Sprintf("rtlink: %v", e.Errno)
}

// Unwrap returns the underlying errno, so errors.Is can match a
// transaction error against unix.EEXIST and friends.
func (e *ProtocolError) Unwrap() error { return e.Errno }
