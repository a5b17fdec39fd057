// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rtlink

import (
	"net"

	"github.com/mdlayher/netlink"
	"github.com/tailscale/rtlink/internal/unix"
	"github.com/tailscale/rtlink/rtattr"
)

// LinkService provides link (network interface) operations on a Conn.
type LinkService struct {
	c *Conn
}

// Set starts a request to change the configuration of the link with
// the given interface index. A zero index addresses the link by a Name
// attribute instead (kernels 2.6.33 and newer).
func (s *LinkService) Set(index uint32) *LinkSet {
	return &LinkSet{
		c:   s.c,
		msg: LinkMessage{Index: index},
	}
}

// LinkSet accumulates one link set request. Its methods record changes
// and return the receiver for chaining; they never fail on their own.
// Execute sends the request and consumes the builder: a LinkSet is
// single-shot and not safe for concurrent use.
type LinkSet struct {
	c       *Conn
	msg     LinkMessage
	replace bool
	done    bool
}

// Up brings the link administratively up, like
// `ip link set dev DEV up`.
func (r *LinkSet) Up() *LinkSet {
	r.msg.Flags |= unix.IFF_UP
	r.msg.Change |= unix.IFF_UP
	return r
}

// Down brings the link administratively down, like
// `ip link set dev DEV down`.
func (r *LinkSet) Down() *LinkSet {
	r.msg.Flags &^= unix.IFF_UP
	r.msg.Change |= unix.IFF_UP
	return r
}

// Promiscuous enables or disables promiscuous mode on the link, like
// `ip link set dev DEV promisc on` (or off).
func (r *LinkSet) Promiscuous(on bool) *LinkSet {
	if on {
		r.msg.Flags |= unix.IFF_PROMISC
	} else {
		r.msg.Flags &^= unix.IFF_PROMISC
	}
	r.msg.Change |= unix.IFF_PROMISC
	return r
}

// ARP enables or disables ARP on the link, like
// `ip link set dev DEV arp on` (or off). The kernel flag is inverted:
// enabling ARP clears IFF_NOARP.
func (r *LinkSet) ARP(on bool) *LinkSet {
	if on {
		r.msg.Flags &^= unix.IFF_NOARP
	} else {
		r.msg.Flags |= unix.IFF_NOARP
	}
	r.msg.Change |= unix.IFF_NOARP
	return r
}

// Name renames the link, like `ip link set DEV name NAME`.
func (r *LinkSet) Name(name string) *LinkSet {
	return r.appendAttr(rtattr.Name(name))
}

// MTU sets the link's MTU, like `ip link set DEV mtu MTU`.
func (r *LinkSet) MTU(mtu uint32) *LinkSet {
	return r.appendAttr(rtattr.MTU(mtu))
}

// Address sets the link's hardware address, like
// `ip link set DEV address ADDRESS`.
func (r *LinkSet) Address(addr net.HardwareAddr) *LinkSet {
	return r.appendAttr(rtattr.Address(addr))
}

// Master attaches the link to the controller device (bond or bridge)
// with the given interface index, like `ip link set DEV master MASTER`.
// A zero index detaches the link, exactly as NoMaster does.
func (r *LinkSet) Master(index uint32) *LinkSet {
	return r.appendAttr(rtattr.Master(index))
}

// NoMaster detaches the link from its controller device, like
// `ip link set DEV nomaster`.
func (r *LinkSet) NoMaster() *LinkSet {
	return r.Master(0)
}

// NetNSPID moves the link into the network namespace of the process
// with the given pid.
func (r *LinkSet) NetNSPID(pid uint32) *LinkSet {
	return r.appendAttr(rtattr.NetNSPID(pid))
}

// NetNSFD moves the link into the network namespace behind the given
// file descriptor.
func (r *LinkSet) NetNSFD(fd int) *LinkSet {
	return r.appendAttr(rtattr.NetNSFD(uint32(fd)))
}

// Replace makes the request overwrite a matching existing link instead
// of failing with EEXIST: NLM_F_REPLACE is sent in place of NLM_F_EXCL.
// Further calls have no additional effect.
func (r *LinkSet) Replace() *LinkSet {
	r.replace = true
	return r
}

// BondPort switches to configuring the named link as a bond port. The
// name is appended to the request immediately; bond-port attributes
// accumulate on the returned builder and are folded into the request
// as nested link info when it executes.
func (r *LinkSet) BondPort(name string) *BondPortSet {
	return &BondPortSet{link: r.Name(name)}
}

func (r *LinkSet) appendAttr(a rtattr.Attr) *LinkSet {
	r.msg.Attrs = append(r.msg.Attrs, a)
	return r
}

// Execute sends the request and waits for the kernel's acknowledgment.
// The first error reply ends the transaction and is returned as a
// *ProtocolError. The builder is consumed: a second Execute returns
// ErrExecuted without touching the socket.
func (r *LinkSet) Execute() error {
	if r.done {
		return ErrExecuted
	}
	r.done = true

	body, err := r.msg.MarshalBinary()
	if err != nil {
		return err
	}
	flags := netlink.Request | netlink.Acknowledge | netlink.Create
	if r.replace {
		flags |= netlink.Replace
	} else {
		flags |= netlink.Excl
	}
	return r.c.execute(unix.RTM_NEWLINK, flags, body, nil)
}
