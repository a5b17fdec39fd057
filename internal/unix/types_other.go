// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !linux

package unix

const (
	NETLINK_ROUTE        = 0x0
	AF_UNSPEC            = 0x0
	RTM_NEWLINK          = 0x10
	RTM_GETLINK          = 0x12
	IFF_UP               = 0x1
	IFF_NOARP            = 0x80
	IFF_PROMISC          = 0x100
	IFLA_ADDRESS         = 0x1
	IFLA_IFNAME          = 0x3
	IFLA_MTU             = 0x4
	IFLA_MASTER          = 0xa
	IFLA_LINKINFO        = 0x12
	IFLA_NET_NS_PID      = 0x13
	IFLA_NET_NS_FD       = 0x1c
	IFLA_INFO_KIND       = 0x1
	IFLA_INFO_DATA       = 0x2
	IFLA_INFO_SLAVE_KIND = 0x4
	IFLA_INFO_SLAVE_DATA = 0x5
)
