// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package unix

import "golang.org/x/sys/unix"

const (
	NETLINK_ROUTE        = unix.NETLINK_ROUTE
	AF_UNSPEC            = unix.AF_UNSPEC
	RTM_NEWLINK          = unix.RTM_NEWLINK
	RTM_GETLINK          = unix.RTM_GETLINK
	IFF_UP               = unix.IFF_UP
	IFF_NOARP            = unix.IFF_NOARP
	IFF_PROMISC          = unix.IFF_PROMISC
	IFLA_ADDRESS         = unix.IFLA_ADDRESS
	IFLA_IFNAME          = unix.IFLA_IFNAME
	IFLA_MTU             = unix.IFLA_MTU
	IFLA_MASTER          = unix.IFLA_MASTER
	IFLA_LINKINFO        = unix.IFLA_LINKINFO
	IFLA_NET_NS_PID      = unix.IFLA_NET_NS_PID
	IFLA_NET_NS_FD       = unix.IFLA_NET_NS_FD
	IFLA_INFO_KIND       = unix.IFLA_INFO_KIND
	IFLA_INFO_DATA       = unix.IFLA_INFO_DATA
	IFLA_INFO_SLAVE_KIND = unix.IFLA_INFO_SLAVE_KIND
	IFLA_INFO_SLAVE_DATA = unix.IFLA_INFO_SLAVE_DATA
)
