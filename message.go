// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rtlink

import (
	"fmt"

	"github.com/mdlayher/netlink/nlenc"
	"github.com/tailscale/rtlink/rtattr"
)

// ifInfoLen is the size of the fixed ifinfomsg header that starts
// every rtnetlink link message.
const ifInfoLen = 16

// LinkMessage is an rtnetlink link message: the fixed ifinfomsg header
// followed by an ordered attribute list.
type LinkMessage struct {
	Family uint8  // address family, AF_UNSPEC for link operations
	Type   uint16 // ARPHRD_* device type, filled by the kernel in replies
	Index  uint32 // interface index; zero addresses the link by attribute
	Flags  uint32 // IFF_* values to apply (or current state, in replies)
	Change uint32 // IFF_* mask selecting which Flags bits apply

	Attrs []rtattr.Attr
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *LinkMessage) MarshalBinary() ([]byte, error) {
	b := make([]byte, ifInfoLen)
	b[0] = m.Family
	// b[1] is implicit padding in ifinfomsg.
	nlenc.PutUint16(b[2:4], m.Type)
	nlenc.PutUint32(b[4:8], m.Index)
	nlenc.PutUint32(b[8:12], m.Flags)
	nlenc.PutUint32(b[12:16], m.Change)

	ab, err := rtattr.Marshal(m.Attrs)
	if err != nil {
		return nil, err
	}
	return append(b, ab...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *LinkMessage) UnmarshalBinary(b []byte) error {
	if len(b) < ifInfoLen {
		return fmt.Errorf("rtlink: link message too short: %d bytes", len(b))
	}
	m.Family = b[0]
	m.Type = nlenc.Uint16(b[2:4])
	m.Index = nlenc.Uint32(b[4:8])
	m.Flags = nlenc.Uint32(b[8:12])
	m.Change = nlenc.Uint32(b[12:16])

	attrs, err := rtattr.Parse(b[ifInfoLen:])
	if err != nil {
		return err
	}
	m.Attrs = attrs
	return nil
}

// IsBondPort reports whether the message describes a link enslaved to
// a bond, that is, one whose link info names "bond" as the port kind.
func (m *LinkMessage) IsBondPort() bool {
	for _, a := range m.Attrs {
		if info, ok := a.(rtattr.Info); ok && info.PortKind == "bond" {
			return true
		}
	}
	return false
}

// Name returns the link's name attribute, or "" if the message has
// none.
func (m *LinkMessage) Name() string {
	for _, a := range m.Attrs {
		if name, ok := a.(rtattr.Name); ok {
			return string(name)
		}
	}
	return ""
}
