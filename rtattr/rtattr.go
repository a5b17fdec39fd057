// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package rtattr models the rtnetlink link attributes understood by
// this module and converts them to and from netlink TLV wire format.
//
// Attributes live in a flat, ordered list on a link message. Appending
// preserves caller order, duplicates included; the kernel processes
// attributes in message order. Nested link info (IFLA_LINKINFO) is
// modeled as a single Info value whose members are emitted in a fixed
// order, so a kind marker always precedes the data it describes.
package rtattr

import (
	"fmt"
	"net"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/tailscale/rtlink/internal/unix"
)

// Attr is a single link-level attribute.
//
// The concrete types in this package are the full set; the interface is
// sealed.
type Attr interface {
	// attr returns the attribute's netlink TLV.
	attr() (netlink.Attribute, error)
}

// Name is the interface name (IFLA_IFNAME).
type Name string

// MTU is the interface MTU in bytes (IFLA_MTU).
type MTU uint32

// Address is the interface hardware address (IFLA_ADDRESS).
type Address net.HardwareAddr

// Master is the interface index of the link's controller device, such
// as a bond or bridge (IFLA_MASTER). Zero detaches the link from its
// controller.
type Master uint32

// NetNSPID moves the link into the network namespace of the process
// with this pid (IFLA_NET_NS_PID).
type NetNSPID uint32

// NetNSFD moves the link into the network namespace behind this file
// descriptor (IFLA_NET_NS_FD).
type NetNSFD uint32

// Unknown is an attribute this package does not model. It round-trips
// through Parse and Marshal unchanged.
type Unknown struct {
	Type uint16
	Data []byte
}

// Info is the nested link info attribute (IFLA_LINKINFO).
//
// Members are emitted in a fixed order: Kind, Data, PortKind, PortData.
// Empty members are omitted entirely, so a bond port with no explicit
// port data carries only its kind marker.
type Info struct {
	Kind     string         // IFLA_INFO_KIND: the link's own kind, e.g. "bond"
	Data     []byte         // IFLA_INFO_DATA: raw kind-specific configuration
	PortKind string         // IFLA_INFO_SLAVE_KIND: the controller's kind
	PortData []BondPortAttr // IFLA_INFO_SLAVE_DATA, valid when PortKind is "bond"
}

// BondPortAttr is a single bond-port attribute, carried inside
// IFLA_INFO_SLAVE_DATA for links enslaved to a bond.
//
// Like Attr, the interface is sealed.
type BondPortAttr interface {
	bondPortAttr() netlink.Attribute
}

// QueueID is the bond port's transmit queue id
// (IFLA_BOND_SLAVE_QUEUE_ID).
type QueueID uint16

// Prio is the bond port's failover priority (IFLA_BOND_SLAVE_PRIO).
type Prio int32

// LinkFailureCount is the number of times the bond port's link has
// failed (IFLA_BOND_SLAVE_LINK_FAILURE_COUNT). The kernel reports it in
// dumps and ignores it on set.
type LinkFailureCount uint32

// BondPortUnknown is a bond-port attribute this package does not model.
// It round-trips through Parse and Marshal unchanged.
type BondPortUnknown struct {
	Type uint16
	Data []byte
}

// Marshal encodes attrs in order into netlink TLV wire format.
func Marshal(attrs []Attr) ([]byte, error) {
	nas := make([]netlink.Attribute, 0, len(attrs))
	for _, a := range attrs {
		na, err := a.attr()
		if err != nil {
			return nil, err
		}
		nas = append(nas, na)
	}
	return netlink.MarshalAttributes(nas)
}

func (n Name) attr() (netlink.Attribute, error) {
	return netlink.Attribute{Type: unix.IFLA_IFNAME, Data: nlenc.Bytes(string(n))}, nil
}

func (m MTU) attr() (netlink.Attribute, error) {
	return netlink.Attribute{Type: unix.IFLA_MTU, Data: nlenc.Uint32Bytes(uint32(m))}, nil
}

func (a Address) attr() (netlink.Attribute, error) {
	return netlink.Attribute{Type: unix.IFLA_ADDRESS, Data: []byte(a)}, nil
}

func (m Master) attr() (netlink.Attribute, error) {
	return netlink.Attribute{Type: unix.IFLA_MASTER, Data: nlenc.Uint32Bytes(uint32(m))}, nil
}

func (p NetNSPID) attr() (netlink.Attribute, error) {
	return netlink.Attribute{Type: unix.IFLA_NET_NS_PID, Data: nlenc.Uint32Bytes(uint32(p))}, nil
}

func (f NetNSFD) attr() (netlink.Attribute, error) {
	return netlink.Attribute{Type: unix.IFLA_NET_NS_FD, Data: nlenc.Uint32Bytes(uint32(f))}, nil
}

func (u Unknown) attr() (netlink.Attribute, error) {
	return netlink.Attribute{Type: u.Type, Data: u.Data}, nil
}

func (i Info) attr() (netlink.Attribute, error) {
	var nested []netlink.Attribute
	if i.Kind != "" {
		nested = append(nested, netlink.Attribute{Type: unix.IFLA_INFO_KIND, Data: nlenc.Bytes(i.Kind)})
	}
	if i.Data != nil {
		nested = append(nested, netlink.Attribute{Type: unix.IFLA_INFO_DATA, Data: i.Data})
	}
	if i.PortKind != "" {
		nested = append(nested, netlink.Attribute{Type: unix.IFLA_INFO_SLAVE_KIND, Data: nlenc.Bytes(i.PortKind)})
	}
	if len(i.PortData) > 0 {
		pd, err := marshalBondPort(i.PortData)
		if err != nil {
			return netlink.Attribute{}, err
		}
		nested = append(nested, netlink.Attribute{Type: unix.IFLA_INFO_SLAVE_DATA, Data: pd})
	}
	data, err := netlink.MarshalAttributes(nested)
	if err != nil {
		return netlink.Attribute{}, err
	}
	return netlink.Attribute{Type: unix.IFLA_LINKINFO, Data: data}, nil
}

func (q QueueID) bondPortAttr() netlink.Attribute {
	return netlink.Attribute{Type: unix.IFLA_BOND_SLAVE_QUEUE_ID, Data: nlenc.Uint16Bytes(uint16(q))}
}

func (p Prio) bondPortAttr() netlink.Attribute {
	return netlink.Attribute{Type: unix.IFLA_BOND_SLAVE_PRIO, Data: nlenc.Uint32Bytes(uint32(p))}
}

func (c LinkFailureCount) bondPortAttr() netlink.Attribute {
	return netlink.Attribute{Type: unix.IFLA_BOND_SLAVE_LINK_FAILURE_COUNT, Data: nlenc.Uint32Bytes(uint32(c))}
}

func (u BondPortUnknown) bondPortAttr() netlink.Attribute {
	return netlink.Attribute{Type: u.Type, Data: u.Data}
}

func marshalBondPort(attrs []BondPortAttr) ([]byte, error) {
	nas := make([]netlink.Attribute, 0, len(attrs))
	for _, a := range attrs {
		nas = append(nas, a.bondPortAttr())
	}
	return netlink.MarshalAttributes(nas)
}

// Parse decodes a TLV attribute stream produced by the kernel or by
// Marshal. Attribute types outside the model are preserved as Unknown.
func Parse(b []byte) ([]Attr, error) {
	nas, err := netlink.UnmarshalAttributes(b)
	if err != nil {
		return nil, err
	}
	attrs := make([]Attr, 0, len(nas))
	for _, na := range nas {
		a, err := parseOne(na)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func parseOne(na netlink.Attribute) (Attr, error) {
	switch na.Type & unix.NLA_TYPE_MASK {
	case unix.IFLA_IFNAME:
		return Name(nlenc.String(na.Data)), nil
	case unix.IFLA_MTU:
		v, err := uint32Payload(na)
		return MTU(v), err
	case unix.IFLA_ADDRESS:
		return Address(na.Data), nil
	case unix.IFLA_MASTER:
		v, err := uint32Payload(na)
		return Master(v), err
	case unix.IFLA_NET_NS_PID:
		v, err := uint32Payload(na)
		return NetNSPID(v), err
	case unix.IFLA_NET_NS_FD:
		v, err := uint32Payload(na)
		return NetNSFD(v), err
	case unix.IFLA_LINKINFO:
		return parseInfo(na)
	default:
		return Unknown{Type: na.Type, Data: na.Data}, nil
	}
}

// parseInfo decodes IFLA_LINKINFO. Payloads that do not fit the Info
// model, such as port data for a non-bond controller, fall back to
// Unknown so nothing is dropped on re-marshal.
func parseInfo(na netlink.Attribute) (Attr, error) {
	nested, err := netlink.UnmarshalAttributes(na.Data)
	if err != nil {
		return nil, err
	}
	var (
		info         Info
		portData     []byte
		havePortData bool
	)
	for _, n := range nested {
		switch n.Type & unix.NLA_TYPE_MASK {
		case unix.IFLA_INFO_KIND:
			info.Kind = nlenc.String(n.Data)
		case unix.IFLA_INFO_DATA:
			info.Data = n.Data
		case unix.IFLA_INFO_SLAVE_KIND:
			info.PortKind = nlenc.String(n.Data)
		case unix.IFLA_INFO_SLAVE_DATA:
			portData, havePortData = n.Data, true
		default:
			return Unknown{Type: na.Type, Data: na.Data}, nil
		}
	}
	if havePortData {
		if info.PortKind != "bond" {
			return Unknown{Type: na.Type, Data: na.Data}, nil
		}
		pd, err := parseBondPort(portData)
		if err != nil {
			return nil, err
		}
		info.PortData = pd
	}
	return info, nil
}

func parseBondPort(b []byte) ([]BondPortAttr, error) {
	nas, err := netlink.UnmarshalAttributes(b)
	if err != nil {
		return nil, err
	}
	attrs := make([]BondPortAttr, 0, len(nas))
	for _, na := range nas {
		switch na.Type & unix.NLA_TYPE_MASK {
		case unix.IFLA_BOND_SLAVE_QUEUE_ID:
			if len(na.Data) != 2 {
				return nil, fmt.Errorf("rtattr: bond port queue id has bad length %d", len(na.Data))
			}
			attrs = append(attrs, QueueID(nlenc.Uint16(na.Data)))
		case unix.IFLA_BOND_SLAVE_PRIO:
			if len(na.Data) != 4 {
				return nil, fmt.Errorf("rtattr: bond port prio has bad length %d", len(na.Data))
			}
			attrs = append(attrs, Prio(nlenc.Int32(na.Data)))
		case unix.IFLA_BOND_SLAVE_LINK_FAILURE_COUNT:
			if len(na.Data) != 4 {
				return nil, fmt.Errorf("rtattr: bond port link failure count has bad length %d", len(na.Data))
			}
			attrs = append(attrs, LinkFailureCount(nlenc.Uint32(na.Data)))
		default:
			attrs = append(attrs, BondPortUnknown{Type: na.Type, Data: na.Data})
		}
	}
	return attrs, nil
}

func uint32Payload(na netlink.Attribute) (uint32, error) {
	if len(na.Data) != 4 {
		return 0, fmt.Errorf("rtattr: attribute %d has bad length %d, want 4", na.Type, len(na.Data))
	}
	return nlenc.Uint32(na.Data), nil
}
