package probe

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"runtime"
	"time"

	"github.com/go-ping/ping"
	"golang.org/x/net/icmp"
)

// DefaultTimeout bounds how long a single echo waits for its reply
const DefaultTimeout = 4 * time.Second

// DefaultPrivileged is true where unprivileged datagram ICMP is unavailable.
// Windows only offers raw ICMP sockets.
var DefaultPrivileged = runtime.GOOS == "windows"

// Options configures the ICMP transport
type Options struct {
	Timeout time.Duration
	// Privileged sends raw ICMP sockets (root or CAP_NET_RAW), otherwise
	// unprivileged datagram ICMP is used.
	Privileged bool
}

// Error describes a probe that did not produce a round trip
type Error struct {
	Addr   netip.Addr
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Addr, e.Reason, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Addr, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ICMP sends single echo requests
type ICMP struct {
	opts Options
}

// New validates opts and verifies that an ICMP socket can be opened
func New(opts Options) (*ICMP, error) {
	if opts.Timeout < 0 {
		return nil, errors.New("probe timeout must not be negative")
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	network := "udp4"
	if opts.Privileged {
		network = "ip4:icmp"
	}
	c, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("open icmp transport (%s): %w", network, err)
	}
	c.Close()

	return &ICMP{opts: opts}, nil
}

// Probe sends one echo request to addr and returns the round trip in milliseconds
func (p *ICMP) Probe(ctx context.Context, addr netip.Addr) (uint32, error) {
	pinger, err := ping.NewPinger(addr.String())
	if err != nil {
		return 0, &Error{Addr: addr, Reason: "create pinger", Err: err}
	}
	pinger.SetPrivileged(p.opts.Privileged)
	pinger.Count = 1
	pinger.Timeout = p.opts.Timeout

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return 0, &Error{Addr: addr, Reason: "send echo", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return 0, &Error{Addr: addr, Reason: "cancelled", Err: err}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 || len(stats.Rtts) == 0 {
		return 0, &Error{Addr: addr, Reason: fmt.Sprintf("no reply within %v", p.opts.Timeout)}
	}
	return durationToMillis(stats.Rtts[0]), nil
}

func durationToMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}
