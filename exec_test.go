// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rtlink

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"syscall"
	"testing"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/netlink/nltest"
	"github.com/tailscale/rtlink/internal/envknob"
	"github.com/tailscale/rtlink/internal/unix"
)

// testConn is an in-memory conn that mimics the real transport: Send
// assigns sequence numbers and PIDs, and Receive pops one queued batch
// per call, failing the whole read when the batch carries an error
// reply with a nonzero errno, the way *netlink.Conn does.
type testConn struct {
	seq      uint32
	sent     []netlink.Message
	recvs    [][]netlink.Message
	recvErr  error
	receives int
	options  map[netlink.ConnOption]bool
	closed   bool
}

const testPID = 1234

func (c *testConn) Close() error {
	c.closed = true
	return nil
}

func (c *testConn) Send(m netlink.Message) (netlink.Message, error) {
	c.seq++
	m.Header.Sequence = c.seq
	m.Header.PID = testPID
	c.sent = append(c.sent, m)
	return m, nil
}

func (c *testConn) Receive() ([]netlink.Message, error) {
	c.receives++
	if c.recvErr != nil {
		return nil, c.recvErr
	}
	if len(c.recvs) == 0 {
		return nil, nil
	}
	batch := c.recvs[0]
	c.recvs = c.recvs[1:]
	for _, m := range batch {
		if m.Header.Type != netlink.Error || len(m.Data) < 4 {
			continue
		}
		if errno := nlenc.Int32(m.Data[:4]); errno != 0 {
			return nil, &netlink.OpError{Op: "receive", Err: syscall.Errno(-errno)}
		}
	}
	return batch, nil
}

func (c *testConn) SetOption(o netlink.ConnOption, on bool) error {
	if c.options == nil {
		c.options = map[netlink.ConnOption]bool{}
	}
	c.options[o] = on
	return nil
}

func testClient(t *testing.T, recvs [][]netlink.Message) (*Conn, *testConn) {
	t.Helper()
	tc := &testConn{recvs: recvs}
	return newConn(tc, &Config{Logf: t.Logf}), tc
}

func replyHeader(typ netlink.HeaderType) netlink.Header {
	return netlink.Header{Type: typ, Sequence: 1, PID: testPID}
}

// infoMsg is an informational reply: an RTM_NEWLINK message with an
// empty ifinfomsg body.
func infoMsg() netlink.Message {
	return netlink.Message{Header: replyHeader(unix.RTM_NEWLINK), Data: make([]byte, 16)}
}

func ackMsg() netlink.Message {
	return netlink.Message{Header: replyHeader(netlink.Error), Data: errnoBytes(0)}
}

func errnoMsg(errno int) netlink.Message {
	return netlink.Message{Header: replyHeader(netlink.Error), Data: errnoBytes(errno)}
}

// errnoBytes encodes an nlmsgerr error field: zero or the negated
// errno.
func errnoBytes(errno int) []byte {
	return nlenc.Uint32Bytes(uint32(int32(-errno)))
}

func TestExecuteAck(t *testing.T) {
	c, tc := testClient(t, [][]netlink.Message{
		{infoMsg()},
		{ackMsg()},
	})
	var seen int
	err := c.execute(unix.RTM_GETLINK, netlink.Request|netlink.Acknowledge, nil, func(netlink.Message) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if seen != 1 {
		t.Errorf("callback saw %d messages, want 1", seen)
	}
	if tc.receives != 2 {
		t.Errorf("Receive calls = %d, want 2", tc.receives)
	}
}

// TestExecuteDrainStopsAtFirstError feeds the drain loop a stream of
// two successes, an error with errno 22, and a trailing message. The
// transaction must surface exactly one error and leave the trailing
// message unread.
func TestExecuteDrainStopsAtFirstError(t *testing.T) {
	t.Run("batch_per_message", func(t *testing.T) {
		c, tc := testClient(t, [][]netlink.Message{
			{infoMsg()},
			{infoMsg()},
			{errnoMsg(22)},
			{infoMsg()},
		})
		var seen int
		err := c.execute(unix.RTM_GETLINK, netlink.Request|netlink.Acknowledge, nil, func(netlink.Message) error {
			seen++
			return nil
		})
		checkErrno22(t, err)
		if seen != 2 {
			t.Errorf("callback saw %d messages, want 2", seen)
		}
		if tc.receives != 3 {
			t.Errorf("Receive calls = %d, want 3", tc.receives)
		}
		if len(tc.recvs) != 1 {
			t.Errorf("%d batches still queued, want 1", len(tc.recvs))
		}
	})
	// An error inside a batch fails that whole read, so none of the
	// batch's messages reach the callback.
	t.Run("error_mid_batch", func(t *testing.T) {
		c, tc := testClient(t, [][]netlink.Message{
			{infoMsg(), infoMsg(), errnoMsg(22), infoMsg()},
		})
		var seen int
		err := c.execute(unix.RTM_GETLINK, netlink.Request|netlink.Acknowledge, nil, func(netlink.Message) error {
			seen++
			return nil
		})
		checkErrno22(t, err)
		if seen != 0 {
			t.Errorf("callback saw %d messages from the failed read, want 0", seen)
		}
		if tc.receives != 1 {
			t.Errorf("Receive calls = %d, want 1", tc.receives)
		}
	})
}

func checkErrno22(t *testing.T, err error) {
	t.Helper()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v (%T), want *ProtocolError", err, err)
	}
	if pe.Errno != syscall.Errno(22) {
		t.Errorf("Errno = %d, want 22", int(pe.Errno))
	}
	if !errors.Is(err, syscall.Errno(22)) {
		t.Errorf("errors.Is(err, Errno(22)) = false")
	}
}

// TestReceiveErrorTranslation drives execute over the receive failures
// the transport can produce. A kernel NLMSG_ERROR reply surfaces as a
// *netlink.OpError carrying a bare errno and any extended-ack text, and
// must become a *ProtocolError; socket-level failures stay transport
// errors.
func TestReceiveErrorTranslation(t *testing.T) {
	tests := []struct {
		name    string
		recvErr error
		want    *ProtocolError // nil: the error passes through as-is
	}{
		{
			name:    "kernel_errno",
			recvErr: &netlink.OpError{Op: "receive", Err: syscall.Errno(22)},
			want:    &ProtocolError{Errno: syscall.Errno(22)},
		},
		{
			name: "kernel_errno_extack",
			recvErr: &netlink.OpError{
				Op:      "receive",
				Err:     syscall.Errno(22),
				Message: "mtu greater than device maximum",
			},
			want: &ProtocolError{Errno: syscall.Errno(22), Msg: "mtu greater than device maximum"},
		},
		{
			name:    "socket_errno",
			recvErr: &netlink.OpError{Op: "receive", Err: os.NewSyscallError("recvmsg", syscall.ENOBUFS)},
		},
		{
			name:    "plain",
			recvErr: errors.New("socket gone"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, tc := testClient(t, nil)
			tc.recvErr = tt.recvErr
			err := c.execute(unix.RTM_NEWLINK, netlink.Request|netlink.Acknowledge, nil, nil)
			var pe *ProtocolError
			if tt.want == nil {
				if !errors.Is(err, tt.recvErr) {
					t.Fatalf("err = %v, want %v passed through", err, tt.recvErr)
				}
				if errors.As(err, &pe) {
					t.Errorf("transport failure wrongly classified as ProtocolError")
				}
				return
			}
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v (%T), want *ProtocolError", err, err)
			}
			if pe.Errno != tt.want.Errno || pe.Msg != tt.want.Msg {
				t.Errorf("ProtocolError = {%d %q}, want {%d %q}",
					int(pe.Errno), pe.Msg, int(tt.want.Errno), tt.want.Msg)
			}
		})
	}
}

// TestNetlinkConnKernelError runs a transaction against a real
// *netlink.Conn whose peer answers with errno 17, pinning that kernel
// failures surface as *ProtocolError through the production transport,
// not only through the test conn.
func TestNetlinkConnKernelError(t *testing.T) {
	nc := nltest.Dial(func(req []netlink.Message) ([]netlink.Message, error) {
		return nltest.Error(int(syscall.EEXIST), req)
	})
	c := newConn(nc, &Config{Logf: t.Logf})
	defer c.Close()

	err := c.Link.Set(2).Up().Execute()
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v (%T), want *ProtocolError", err, err)
	}
	if pe.Errno != syscall.EEXIST {
		t.Errorf("Errno = %v, want EEXIST", pe.Errno)
	}
	if !errors.Is(err, syscall.EEXIST) {
		t.Errorf("errors.Is(err, EEXIST) = false")
	}
}

func TestNetlinkConnAck(t *testing.T) {
	nc := nltest.Dial(func(req []netlink.Message) ([]netlink.Message, error) {
		return nltest.Error(0, req)
	})
	c := newConn(nc, &Config{Logf: t.Logf})
	defer c.Close()

	if err := c.Link.Set(2).Up().Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestExecuteRejectsForeignSequence(t *testing.T) {
	stray := infoMsg()
	stray.Header.Sequence = 99
	c, _ := testClient(t, [][]netlink.Message{{stray}})
	err := c.execute(unix.RTM_GETLINK, netlink.Request|netlink.Acknowledge, nil, nil)
	if err == nil {
		t.Fatal("execute accepted a reply with a foreign sequence number")
	}
}

func TestDumpScansSingleBatch(t *testing.T) {
	c, tc := testClient(t, [][]netlink.Message{
		{infoMsg(), infoMsg(), infoMsg()},
	})
	var seen int
	err := c.dump(unix.RTM_GETLINK, netlink.Request|netlink.Dump, nil, func(netlink.Message) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if seen != 3 {
		t.Errorf("callback saw %d messages, want 3", seen)
	}
	if tc.receives != 1 {
		t.Errorf("Receive calls = %d, want 1", tc.receives)
	}
}

func TestDumpError(t *testing.T) {
	c, _ := testClient(t, [][]netlink.Message{
		{infoMsg(), errnoMsg(22)},
	})
	err := c.dump(unix.RTM_GETLINK, netlink.Request|netlink.Dump, nil, func(netlink.Message) error { return nil })
	checkErrno22(t, err)
}

// TestAckErrorRawReply exercises ack parsing over raw NLMSG_ERROR
// replies, as delivered by a conn that does not intercept them.
func TestAckErrorRawReply(t *testing.T) {
	c, _ := testClient(t, nil)
	if err := c.ackError(ackMsg()); err != nil {
		t.Errorf("ackError(errno 0) = %v, want nil", err)
	}

	err := c.ackError(errnoMsg(5))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProtocolError", err)
	}
	if pe.Errno != syscall.Errno(5) || pe.Msg != "" {
		t.Errorf("ProtocolError = {%d %q}, want {5 %q}", int(pe.Errno), pe.Msg, "")
	}

	short := netlink.Message{Header: replyHeader(netlink.Error), Data: []byte{0, 0}}
	if err := c.ackError(short); err == nil {
		t.Error("ackError accepted a truncated error payload")
	}
}

func TestConnOptions(t *testing.T) {
	_, tc := testClient(t, nil)
	if !tc.options[netlink.ExtendedAcknowledge] {
		t.Errorf("extended acks not enabled")
	}
	if !tc.options[netlink.GetStrictCheck] {
		t.Errorf("strict checking not enabled")
	}

	tc2 := &testConn{}
	newConn(tc2, &Config{Logf: t.Logf, DisableStrictCheck: true})
	if _, ok := tc2.options[netlink.GetStrictCheck]; ok {
		t.Errorf("strict checking enabled despite DisableStrictCheck")
	}
}

func TestConnClose(t *testing.T) {
	c, tc := testClient(t, nil)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !tc.closed {
		t.Error("underlying conn not closed")
	}
}

// Set environment knobs are echoed to the connection's logger so debug
// output records how the process was configured.
func TestNewConnLogsKnobs(t *testing.T) {
	envknob.Setenv("RTLINK_DEBUG_NETLINK", "true")
	defer envknob.Setenv("RTLINK_DEBUG_NETLINK", "")

	var lines []string
	newConn(&testConn{}, &Config{Logf: func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}})
	if want := `envknob: RTLINK_DEBUG_NETLINK="true"`; !slices.Contains(lines, want) {
		t.Errorf("knob state missing from connection log %q", lines)
	}
}
