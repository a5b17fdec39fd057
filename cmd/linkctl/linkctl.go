// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The linkctl command configures network interfaces over rtnetlink,
// like a small subset of ip(8) link.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/tailscale/rtlink"
	"github.com/tailscale/rtlink/internal/envknob"
	"github.com/tailscale/rtlink/internal/unix"
	"github.com/tailscale/rtlink/rtattr"
	"github.com/vishvananda/netns"
)

var rootArgs struct {
	verbose bool
}

func main() {
	log.SetFlags(0)

	root := &ffcli.Command{
		Name:       "linkctl",
		ShortUsage: "linkctl [flags] <command> [command flags]",
		ShortHelp:  "Configure network interfaces over rtnetlink",
		LongHelp:   `For help on subcommands, add --help after: "linkctl set --help".`,
		FlagSet: (func() *flag.FlagSet {
			fs := flag.NewFlagSet("linkctl", flag.ExitOnError)
			fs.BoolVar(&rootArgs.verbose, "v", false, "log every netlink request and reply")
			return fs
		})(),
		Subcommands: []*ffcli.Command{listCmd, upCmd, downCmd, setCmd, bondPortCmd},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}

	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Fatal(err)
	}
}

func dial() (*rtlink.Conn, error) {
	if rootArgs.verbose {
		envknob.Setenv("RTLINK_DEBUG_NETLINK", "true")
	}
	return rtlink.Dial(nil)
}

func ifaceIndex(name string) (uint32, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return uint32(ifi.Index), nil
}

var listCmd = &ffcli.Command{
	Name:       "list",
	ShortUsage: "linkctl list",
	ShortHelp:  "List links and their state.",
	Exec: func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			return flag.ErrHelp
		}
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()
		links, err := c.Link.Get().Execute()
		if err != nil {
			return err
		}
		for _, l := range links {
			fmt.Println(linkLine(l))
		}
		return nil
	},
}

// linkLine formats one link in the manner of ip link, one line per
// link.
func linkLine(l rtlink.LinkMessage) string {
	var sb strings.Builder
	state := "down"
	if l.Flags&unix.IFF_UP != 0 {
		state = "up"
	}
	name := l.Name()
	if name == "" {
		name = "?"
	}
	fmt.Fprintf(&sb, "%d: %s: %s", l.Index, name, state)
	for _, a := range l.Attrs {
		switch v := a.(type) {
		case rtattr.MTU:
			fmt.Fprintf(&sb, " mtu %d", uint32(v))
		case rtattr.Master:
			fmt.Fprintf(&sb, " master %d", uint32(v))
		case rtattr.Info:
			if v.PortKind != "" {
				fmt.Fprintf(&sb, " %s port", v.PortKind)
				for _, pa := range v.PortData {
					switch p := pa.(type) {
					case rtattr.QueueID:
						fmt.Fprintf(&sb, " queue %d", uint16(p))
					case rtattr.Prio:
						fmt.Fprintf(&sb, " prio %d", int32(p))
					case rtattr.LinkFailureCount:
						fmt.Fprintf(&sb, " failures %d", uint32(p))
					}
				}
			} else if v.Kind != "" {
				fmt.Fprintf(&sb, " kind %s", v.Kind)
			}
		}
	}
	return sb.String()
}

var upCmd = &ffcli.Command{
	Name:       "up",
	ShortUsage: "linkctl up <device>",
	ShortHelp:  "Bring a link up.",
	Exec: func(ctx context.Context, args []string) error {
		return runUpDown(args, true)
	},
}

var downCmd = &ffcli.Command{
	Name:       "down",
	ShortUsage: "linkctl down <device>",
	ShortHelp:  "Bring a link down.",
	Exec: func(ctx context.Context, args []string) error {
		return runUpDown(args, false)
	},
}

func runUpDown(args []string, up bool) error {
	if len(args) != 1 {
		return flag.ErrHelp
	}
	idx, err := ifaceIndex(args[0])
	if err != nil {
		return err
	}
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()
	r := c.Link.Set(idx)
	if up {
		r.Up()
	} else {
		r.Down()
	}
	return r.Execute()
}

var setArgs struct {
	name     string
	mtu      uint
	address  string
	master   string
	noMaster bool
	promisc  string
	arp      string
	netnsPID uint
	netnsFD  int
	netns    string
	replace  bool
}

var setCmd = &ffcli.Command{
	Name:       "set",
	ShortUsage: "linkctl set <device> [flags]",
	ShortHelp:  "Change link device attributes.",
	FlagSet: (func() *flag.FlagSet {
		fs := flag.NewFlagSet("set", flag.ExitOnError)
		fs.StringVar(&setArgs.name, "name", "", "rename the link")
		fs.UintVar(&setArgs.mtu, "mtu", 0, "set the link MTU")
		fs.StringVar(&setArgs.address, "address", "", "set the link's hardware address")
		fs.StringVar(&setArgs.master, "master", "", "attach the link to this controller device")
		fs.BoolVar(&setArgs.noMaster, "nomaster", false, "detach the link from its controller device")
		fs.StringVar(&setArgs.promisc, "promisc", "", `set promiscuous mode ("on" or "off")`)
		fs.StringVar(&setArgs.arp, "arp", "", `set ARP use ("on" or "off")`)
		fs.UintVar(&setArgs.netnsPID, "netns-pid", 0, "move the link into the network namespace of this process")
		fs.IntVar(&setArgs.netnsFD, "netns-fd", -1, "move the link into the network namespace behind this file descriptor")
		fs.StringVar(&setArgs.netns, "netns", "", "move the link into this named network namespace")
		fs.BoolVar(&setArgs.replace, "replace", false, "overwrite a matching existing link instead of failing")
		return fs
	})(),
	Exec: runSet,
}

func runSet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return flag.ErrHelp
	}
	if setArgs.master != "" && setArgs.noMaster {
		return errors.New("-master and -nomaster are mutually exclusive")
	}
	idx, err := ifaceIndex(args[0])
	if err != nil {
		return err
	}
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	r := c.Link.Set(idx)
	if setArgs.name != "" {
		r.Name(setArgs.name)
	}
	if setArgs.mtu != 0 {
		r.MTU(uint32(setArgs.mtu))
	}
	if setArgs.address != "" {
		mac, err := net.ParseMAC(setArgs.address)
		if err != nil {
			return err
		}
		r.Address(mac)
	}
	if setArgs.master != "" {
		midx, err := ifaceIndex(setArgs.master)
		if err != nil {
			return err
		}
		r.Master(midx)
	}
	if setArgs.noMaster {
		r.NoMaster()
	}
	if setArgs.promisc != "" {
		on, err := parseOnOff("promisc", setArgs.promisc)
		if err != nil {
			return err
		}
		r.Promiscuous(on)
	}
	if setArgs.arp != "" {
		on, err := parseOnOff("arp", setArgs.arp)
		if err != nil {
			return err
		}
		r.ARP(on)
	}
	if setArgs.netnsPID != 0 {
		r.NetNSPID(uint32(setArgs.netnsPID))
	}
	if setArgs.netnsFD >= 0 {
		r.NetNSFD(setArgs.netnsFD)
	}
	if setArgs.netns != "" {
		ns, err := netns.GetFromName(setArgs.netns)
		if err != nil {
			return fmt.Errorf("netns %q: %w", setArgs.netns, err)
		}
		defer ns.Close()
		r.NetNSFD(int(ns))
	}
	if setArgs.replace {
		r.Replace()
	}
	return r.Execute()
}

func parseOnOff(flagName, v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("-%s must be \"on\" or \"off\", not %q", flagName, v)
}

var bondPortArgs struct {
	queueID int
	prio    string
	up      bool
}

var bondPortCmd = &ffcli.Command{
	Name:       "bond-port",
	ShortUsage: "linkctl bond-port <device> [flags]",
	ShortHelp:  "Change bond port attributes of a link.",
	LongHelp: strings.TrimSpace(`
The device is matched by name, so ports can be addressed before they
have a stable index. The device must already be enslaved to a bond.
`),
	FlagSet: (func() *flag.FlagSet {
		fs := flag.NewFlagSet("bond-port", flag.ExitOnError)
		fs.IntVar(&bondPortArgs.queueID, "queue-id", -1, "set the port's transmit queue id")
		fs.StringVar(&bondPortArgs.prio, "prio", "", "set the port's failover priority")
		fs.BoolVar(&bondPortArgs.up, "up", false, "also bring the link up")
		return fs
	})(),
	Exec: runBondPort,
}

func runBondPort(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return flag.ErrHelp
	}
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	r := c.Link.Set(0).BondPort(args[0])
	if bondPortArgs.queueID >= 0 {
		if bondPortArgs.queueID > 0xffff {
			return fmt.Errorf("-queue-id %d out of range", bondPortArgs.queueID)
		}
		r.QueueID(uint16(bondPortArgs.queueID))
	}
	if bondPortArgs.prio != "" {
		p, err := strconv.ParseInt(bondPortArgs.prio, 10, 32)
		if err != nil {
			return fmt.Errorf("-prio: %v", err)
		}
		r.Prio(int32(p))
	}
	if bondPortArgs.up {
		r.Up()
	}
	return r.Execute()
}
