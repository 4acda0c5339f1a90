package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	ErrProcessNotFound  = errors.New("process not found")
	ErrEndpointNotFound = errors.New("no remote tcp endpoint")

	// ErrMalformedAddress is returned when the OS reports an address that
	// cannot be parsed. It indicates a broken environment, not a transient state.
	ErrMalformedAddress = errors.New("malformed address")
)

// Process is one entry of the process table
type Process struct {
	PID  int32
	Name string
}

// Connection is one active IPv4 TCP entry of the socket table
type Connection struct {
	PID    int32
	Remote netip.AddrPort
}

// ProcessTable returns a fresh, complete snapshot of the live processes
type ProcessTable interface {
	Processes(ctx context.Context) ([]Process, error)
}

// SocketTable returns a fresh, complete snapshot of the active IPv4 TCP connections
type SocketTable interface {
	Connections(ctx context.Context) ([]Connection, error)
}

// Resolver finds the remote endpoint a named process is talking to.
// Both lookups rescan the full tables on every call.
type Resolver struct {
	procs   ProcessTable
	sockets SocketTable
}

func New(procs ProcessTable, sockets SocketTable) *Resolver {
	return &Resolver{procs: procs, sockets: sockets}
}

// FindProcess returns the lowest PID whose name contains name, ignoring case
func (r *Resolver) FindProcess(ctx context.Context, name string) (int32, error) {
	procs, err := r.procs.Processes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	needle := strings.ToLower(name)
	found := false
	var pid int32
	for _, p := range procs {
		if !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if !found || p.PID < pid {
			pid = p.PID
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %q", ErrProcessNotFound, name)
	}
	return pid, nil
}

// FindRemoteEndpoint returns the lowest remote IPv4 address among the TCP
// connections owned by pid. Entries without a remote peer and loopback
// peers (local overlays, plugin bridges) are skipped.
func (r *Resolver) FindRemoteEndpoint(ctx context.Context, pid int32) (netip.Addr, error) {
	conns, err := r.sockets.Connections(ctx)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("list tcp sockets: %w", err)
	}

	var best netip.Addr
	for _, c := range conns {
		if c.PID != pid {
			continue
		}
		addr := c.Remote.Addr().Unmap()
		if !addr.Is4() || addr.IsUnspecified() || addr.IsLoopback() {
			continue
		}
		if !best.IsValid() || addr.Compare(best) < 0 {
			best = addr
		}
	}
	if !best.IsValid() {
		return netip.Addr{}, fmt.Errorf("%w for pid %d", ErrEndpointNotFound, pid)
	}
	return best, nil
}
