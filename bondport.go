// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rtlink

import "github.com/tailscale/rtlink/rtattr"

// BondPortSet accumulates bond-port attributes for one link, reached
// through LinkSet.BondPort. Like its parent it is single-shot.
type BondPortSet struct {
	link *LinkSet
	data []rtattr.BondPortAttr
}

// QueueID sets the port's transmit queue id, like
// `ip link set dev DEV type bond_slave queue_id ID`.
func (r *BondPortSet) QueueID(id uint16) *BondPortSet {
	r.data = append(r.data, rtattr.QueueID(id))
	return r
}

// Prio sets the port's failover priority, like
// `ip link set dev DEV type bond_slave prio PRIO`.
func (r *BondPortSet) Prio(prio int32) *BondPortSet {
	r.data = append(r.data, rtattr.Prio(prio))
	return r
}

// LinkFailureCount sets the port's link failure counter attribute. The
// kernel reports the counter in dumps and ignores it on set.
func (r *BondPortSet) LinkFailureCount(n uint32) *BondPortSet {
	r.data = append(r.data, rtattr.LinkFailureCount(n))
	return r
}

// Up brings the link administratively up.
func (r *BondPortSet) Up() *BondPortSet {
	r.link.Up()
	return r
}

// MatchName identifies the link by name rather than index: the kernel
// matches the Name attribute when the request's index is zero (kernels
// 2.6.33 and newer). The attribute list is append-only, so this adds a
// second Name when BondPort already recorded one.
func (r *BondPortSet) MatchName(name string) *BondPortSet {
	r.link.Name(name)
	return r
}

// Execute folds the accumulated bond-port attributes into the parent
// request as nested link info and executes it. The link info carries
// the "bond" port kind marker first and then the port data; the data
// is omitted entirely when no attributes were recorded.
func (r *BondPortSet) Execute() error {
	if r.link.done {
		return ErrExecuted
	}
	r.link.appendAttr(rtattr.Info{
		PortKind: "bond",
		PortData: r.data,
	})
	return r.link.Execute()
}
