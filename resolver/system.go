package resolver

import (
	"context"
	"fmt"
	"net/netip"

	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// SystemProcessTable reads the host process table
type SystemProcessTable struct{}

func (SystemProcessTable) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// exited between listing and reading its name
			continue
		}
		out = append(out, Process{PID: p.Pid, Name: name})
	}
	return out, nil
}

// SystemSocketTable reads the host IPv4 TCP socket table
type SystemSocketTable struct{}

func (SystemSocketTable) Connections(ctx context.Context) ([]Connection, error) {
	stats, err := psnet.ConnectionsWithContext(ctx, "tcp4")
	if err != nil {
		return nil, err
	}

	out := make([]Connection, 0, len(stats))
	for _, s := range stats {
		if s.Raddr.IP == "" {
			continue // listening socket
		}
		addr, err := netip.ParseAddr(s.Raddr.IP)
		if err != nil {
			return nil, fmt.Errorf("%w: remote %q of pid %d", ErrMalformedAddress, s.Raddr.IP, s.Pid)
		}
		out = append(out, Connection{
			PID:    s.Pid,
			Remote: netip.AddrPortFrom(addr, uint16(s.Raddr.Port)),
		})
	}
	return out, nil
}
