// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rtlink

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
)

// send marshals and sends one request. The returned message carries the
// sequence number and PID the transport assigned, for reply validation.
func (c *Conn) send(typ netlink.HeaderType, flags netlink.HeaderFlags, body []byte) (netlink.Message, error) {
	req := netlink.Message{
		Header: netlink.Header{
			Type:  typ,
			Flags: flags,
		},
		Data: body,
	}
	sent, err := c.c.Send(req)
	if err != nil {
		return netlink.Message{}, err
	}
	c.debugf("send: type=0x%x flags=0x%x body=%d bytes", uint16(typ), uint16(flags), len(body))
	return sent, nil
}

// execute sends a request and drains its reply stream until the
// terminal message: the kernel's ack (errno 0), an error reply, or
// NLMSG_DONE. Informational replies in between are passed to each, when
// non-nil. flags must request an ack so the stream has a terminal.
func (c *Conn) execute(typ netlink.HeaderType, flags netlink.HeaderFlags, body []byte, each func(netlink.Message) error) error {
	sent, err := c.send(typ, flags, body)
	if err != nil {
		return err
	}
	for {
		msgs, err := c.c.Receive()
		if err != nil {
			return c.recvError(err)
		}
		if len(msgs) == 0 {
			return nil
		}
		if err := netlink.Validate(sent, msgs); err != nil {
			return err
		}
		done, err := c.scan(msgs, each)
		if done || err != nil {
			return err
		}
	}
}

// dump sends a dump request and decodes its reply batch. The transport
// collects the full multi-part stream, so a single receive covers the
// dump; an error reply mid-stream is terminal, exactly as in execute.
func (c *Conn) dump(typ netlink.HeaderType, flags netlink.HeaderFlags, body []byte, each func(netlink.Message) error) error {
	sent, err := c.send(typ, flags, body)
	if err != nil {
		return err
	}
	msgs, err := c.c.Receive()
	if err != nil {
		return c.recvError(err)
	}
	if err := netlink.Validate(sent, msgs); err != nil {
		return err
	}
	_, err = c.scan(msgs, each)
	return err
}

// recvError maps a failed receive onto the transaction's error
// contract. The transport returns an NLMSG_ERROR reply with a nonzero
// errno as a *netlink.OpError, extended-ack text already decoded; those
// become *ProtocolError. The kernel's errno arrives as a bare
// syscall.Errno, while socket-level failures come wrapped and pass
// through as transport errors.
func (c *Conn) recvError(err error) error {
	var oe *netlink.OpError
	if !errors.As(err, &oe) {
		return err
	}
	errno, ok := oe.Err.(syscall.Errno)
	if !ok {
		return err
	}
	pe := &ProtocolError{Errno: errno, Msg: oe.Message}
	c.debugf("recv: error errno=%d msg=%q", int(errno), pe.Msg)
	return pe
}

// scan walks one received batch in order. done reports that the
// transaction reached its terminal message; once a terminal is seen the
// remaining messages in the batch are left unread.
func (c *Conn) scan(msgs []netlink.Message, each func(netlink.Message) error) (done bool, err error) {
	for _, m := range msgs {
		switch m.Header.Type {
		case netlink.Error:
			return true, c.ackError(m)
		case netlink.Done:
			return true, nil
		default:
			if each == nil {
				continue
			}
			if err := each(m); err != nil {
				return true, err
			}
		}
	}
	return false, nil
}

// ackError interprets an NLMSG_ERROR reply. Errno zero is the kernel's
// acknowledgment of success and yields nil. The transport intercepts
// nonzero errnos in Receive before a scan ever sees them, so the error
// branch matters only for a conn that hands replies through raw.
func (c *Conn) ackError(m netlink.Message) error {
	if len(m.Data) < 4 {
		return fmt.Errorf("rtlink: truncated NLMSG_ERROR payload: %d bytes", len(m.Data))
	}
	if errno := nlenc.Int32(m.Data[:4]); errno != 0 {
		return &ProtocolError{Errno: syscall.Errno(-errno)}
	}
	c.debugf("recv: ack")
	return nil
}
