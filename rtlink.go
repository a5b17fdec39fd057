// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package rtlink configures network interfaces over rtnetlink.
//
// A Conn issues RTM_NEWLINK set requests built with a fluent,
// single-shot builder:
//
//	c, err := rtlink.Dial(nil)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	return c.Link.Set(index).MTU(1400).Up().Execute()
//
// Bond ports use a sub-builder whose attributes are folded into nested
// link info when the request executes:
//
//	return c.Link.Set(9).BondPort("dummy0").QueueID(1).Prio(6).Up().Execute()
//
// Execute sends one request and drains its reply stream: the kernel's
// acknowledgment ends the transaction, and the first error reply is
// returned as a *ProtocolError. Builders are consumed by Execute and
// cannot be reused.
package rtlink

import (
	"log"

	"github.com/mdlayher/netlink"
	"github.com/tailscale/rtlink/internal/envknob"
	"github.com/tailscale/rtlink/internal/unix"
)

// debugNetlink enables verbose logging of requests and replies.
var debugNetlink = envknob.RegisterBool("RTLINK_DEBUG_NETLINK")

// conn is the subset of *netlink.Conn used by Conn. Tests substitute a
// fake transport through it.
type conn interface {
	Close() error
	Send(netlink.Message) (netlink.Message, error)
	Receive() ([]netlink.Message, error)
	SetOption(netlink.ConnOption, bool) error
}

var _ conn = (*netlink.Conn)(nil)

// Config customizes a Conn. A nil Config is equivalent to the zero
// value.
type Config struct {
	// Logf, if non-nil, specifies the logger to use. By default,
	// log.Printf is used.
	Logf func(format string, args ...any)

	// DisableStrictCheck leaves kernel-side strict request validation
	// off instead of enabling it opportunistically.
	DisableStrictCheck bool
}

// Conn is a connection to rtnetlink.
//
// Its request methods correlate replies by receive order, so requests
// must not be issued concurrently.
type Conn struct {
	c    conn
	logf func(format string, args ...any)

	// Link provides link (network interface) operations.
	Link *LinkService
}

// Dial opens an rtnetlink connection.
func Dial(cfg *Config) (*Conn, error) {
	nc, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return nil, err
	}
	return newConn(nc, cfg), nil
}

// newConn is the internal constructor, split out so tests can supply
// their own transport.
func newConn(nc conn, cfg *Config) *Conn {
	if cfg == nil {
		cfg = &Config{}
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	c := &Conn{c: nc, logf: logf}
	c.Link = &LinkService{c: c}
	envknob.LogCurrent(logf)

	// Both options are best effort: old kernels support neither.
	// Extended acks carry the kernel's own description of a failure;
	// strict checking rejects malformed get requests instead of
	// misreading them.
	if err := nc.SetOption(netlink.ExtendedAcknowledge, true); err != nil {
		c.debugf("extended acks unavailable: %v", err)
	}
	if !cfg.DisableStrictCheck {
		if err := nc.SetOption(netlink.GetStrictCheck, true); err != nil {
			c.debugf("strict checking unavailable: %v", err)
		}
	}
	return c
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

func (c *Conn) debugf(format string, args ...any) {
	if debugNetlink() {
		c.logf("rtlink: "+format, args...)
	}
}
