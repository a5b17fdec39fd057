// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rtlink

import (
	"github.com/mdlayher/netlink"
	"github.com/tailscale/rtlink/internal/unix"
	"github.com/tailscale/rtlink/rtattr"
)

// Get starts a link query. With no filter it dumps every link; Index
// and MatchName narrow it to a single one.
func (s *LinkService) Get() *LinkGet {
	return &LinkGet{c: s.c, dump: true}
}

// LinkGet accumulates one link query. Like LinkSet it is single-shot
// and not safe for concurrent use.
type LinkGet struct {
	c    *Conn
	msg  LinkMessage
	dump bool
	done bool
}

// Index queries only the link with the given interface index.
func (g *LinkGet) Index(index uint32) *LinkGet {
	g.msg.Index = index
	g.dump = false
	return g
}

// MatchName queries only the link with the given name
// (kernels 2.6.33 and newer).
func (g *LinkGet) MatchName(name string) *LinkGet {
	g.msg.Attrs = append(g.msg.Attrs, rtattr.Name(name))
	g.dump = false
	return g
}

// Execute runs the query and returns the matching links. The builder
// is consumed, as with LinkSet.Execute.
func (g *LinkGet) Execute() ([]LinkMessage, error) {
	if g.done {
		return nil, ErrExecuted
	}
	g.done = true

	body, err := g.msg.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var links []LinkMessage
	collect := func(m netlink.Message) error {
		if m.Header.Type != unix.RTM_NEWLINK {
			return nil
		}
		var lm LinkMessage
		if err := lm.UnmarshalBinary(m.Data); err != nil {
			return err
		}
		links = append(links, lm)
		return nil
	}
	if g.dump {
		err = g.c.dump(unix.RTM_GETLINK, netlink.Request|netlink.Dump, body, collect)
	} else {
		err = g.c.execute(unix.RTM_GETLINK, netlink.Request|netlink.Acknowledge, body, collect)
	}
	if err != nil {
		return nil, err
	}
	return links, nil
}
