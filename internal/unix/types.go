// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package unix carries the netlink and rtnetlink constants this module
// uses, so that the codec packages compile on every platform.
package unix

// Constants without a counterpart in golang.org/x/sys/unix snapshots.
const (
	IFLA_BOND_SLAVE_LINK_FAILURE_COUNT = 0x3
	IFLA_BOND_SLAVE_QUEUE_ID           = 0x5
	IFLA_BOND_SLAVE_PRIO               = 0x9

	NLA_TYPE_MASK = 0x3fff
)
