package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/iedon/gameping-agent/latency"
	"github.com/iedon/gameping-agent/resolver"
)

const (
	DefaultProcessName = "ffxiv_dx11"
	DefaultInterval    = 2 * time.Second
)

// Config holds the parameters of the monitoring loop
type Config struct {
	ProcessName string
	Interval    time.Duration
	HistorySize int
	// Debug logs every probe result
	Debug bool
}

// Resolver locates the target process and its remote endpoint
type Resolver interface {
	FindProcess(ctx context.Context, name string) (int32, error)
	FindRemoteEndpoint(ctx context.Context, pid int32) (netip.Addr, error)
}

// Prober measures the round trip to an address in milliseconds
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr) (uint32, error)
}

// Locator maps an address to an ISO country code
type Locator interface {
	Country(addr netip.Addr) (string, error)
}

// Renderer displays either live statistics or the reason none are available
type Renderer interface {
	RenderSnapshot(Snapshot) error
	RenderStatus(msg string) error
}

// Snapshot is a read-only copy of the tracked statistics
type Snapshot struct {
	Endpoint string    `json:"endpoint"`
	Country  string    `json:"country,omitempty"`
	Session  string    `json:"session"`
	Last     uint32    `json:"last_ms"`
	Average  uint32    `json:"average_ms"`
	Max      uint32    `json:"max_ms"`
	Min      uint32    `json:"min_ms"`
	Errors   uint32    `json:"errors"`
	Samples  int       `json:"samples"`
	Time     time.Time `json:"time"`
}

// Outcome tells how a tick ended
type Outcome int

const (
	OutcomeSample Outcome = iota
	OutcomeProbeFailed
	OutcomeProcessNotFound
	OutcomeEndpointNotFound
	OutcomeDiscoveryFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSample:
		return "sample"
	case OutcomeProbeFailed:
		return "probe failed"
	case OutcomeProcessNotFound:
		return "process not found"
	case OutcomeEndpointNotFound:
		return "endpoint not found"
	case OutcomeDiscoveryFailed:
		return "discovery failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Option func(*Monitor)

// WithLocator tags every newly tracked endpoint with its country
func WithLocator(l Locator) Option {
	return func(m *Monitor) { m.locator = l }
}

// WithClock replaces time.Now for snapshot timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor drives discovery, probing and reporting one tick at a time.
// It is not safe for concurrent use; the window is owned by the loop.
type Monitor struct {
	cfg      Config
	resolver Resolver
	prober   Prober
	out      Renderer
	locator  Locator
	now      func() time.Time

	window  *latency.Window
	session string
	country string
}

func New(cfg Config, r Resolver, p Prober, out Renderer, opts ...Option) *Monitor {
	if cfg.ProcessName == "" {
		cfg.ProcessName = DefaultProcessName
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = latency.DefaultCapacity
	}

	m := &Monitor{
		cfg:      cfg,
		resolver: r,
		prober:   p,
		out:      out,
		now:      time.Now,
		window:   latency.NewWindow(cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run ticks until ctx is cancelled, sleeping Interval between ticks.
// Only fatal errors end the loop early.
func (m *Monitor) Run(ctx context.Context) error {
	log.Printf("[Monitor] Watching process %q every %v", m.cfg.ProcessName, m.cfg.Interval)

	for {
		if _, err := m.Tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			log.Println("[Monitor] Monitoring loop shutting down...")
			return nil
		case <-time.After(m.cfg.Interval):
		}
	}
}

// Tick performs one discover, probe and report cycle. The returned error is
// non-nil only for failures that must stop the agent.
func (m *Monitor) Tick(ctx context.Context) (Outcome, error) {
	pid, err := m.resolver.FindProcess(ctx, m.cfg.ProcessName)
	if err != nil {
		return m.discoveryFailed(err, fmt.Sprintf("Process %q not found", m.cfg.ProcessName))
	}

	addr, err := m.resolver.FindRemoteEndpoint(ctx, pid)
	if err != nil {
		return m.discoveryFailed(err, "No game connection")
	}
	m.track(addr)

	outcome := OutcomeSample
	rtt, err := m.prober.Probe(ctx, addr)
	if err != nil && ctx.Err() != nil {
		// shutdown interrupted the probe, nothing was measured
		return OutcomeCancelled, nil
	}
	if err != nil {
		m.window.UpdateError()
		outcome = OutcomeProbeFailed
		log.Printf("[Monitor] %v (errors: %d)", err, m.window.Errors())
	} else {
		m.window.UpdatePing(rtt)
		if m.cfg.Debug {
			log.Printf("[Monitor] %s: %d ms", addr, rtt)
		}
	}

	if err := m.out.RenderSnapshot(m.Snapshot()); err != nil {
		log.Printf("[Monitor] Failed to render snapshot: %v", err)
	}
	return outcome, nil
}

func (m *Monitor) discoveryFailed(err error, msg string) (Outcome, error) {
	var outcome Outcome
	switch {
	case errors.Is(err, resolver.ErrMalformedAddress):
		return OutcomeDiscoveryFailed, fmt.Errorf("resolve endpoint: %w", err)
	case errors.Is(err, resolver.ErrProcessNotFound):
		outcome = OutcomeProcessNotFound
	case errors.Is(err, resolver.ErrEndpointNotFound):
		outcome = OutcomeEndpointNotFound
	default:
		outcome = OutcomeDiscoveryFailed
		msg = fmt.Sprintf("Discovery failed: %v", err)
		log.Printf("[Monitor] %v", err)
	}

	if err := m.out.RenderStatus(msg); err != nil {
		log.Printf("[Monitor] Failed to render status: %v", err)
	}
	return outcome, nil
}

// track adopts addr, starting a new session when the endpoint changed
func (m *Monitor) track(addr netip.Addr) {
	prev := m.window.Address()
	if !m.window.SetTrackedAddress(addr.String()) {
		return
	}

	m.session = uuid.NewString()
	m.country = ""
	if m.locator != nil {
		country, err := m.locator.Country(addr)
		if err != nil {
			log.Printf("[Monitor] GeoIP lookup for %s failed: %v", addr, err)
		} else {
			m.country = country
		}
	}

	if prev == "" {
		log.Printf("[Monitor] Tracking endpoint %s (session %s)", addr, m.session)
	} else {
		log.Printf("[Monitor] Endpoint changed from %s to %s, statistics reset (session %s)", prev, addr, m.session)
	}
}

// Snapshot copies the current statistics
func (m *Monitor) Snapshot() Snapshot {
	return Snapshot{
		Endpoint: m.window.Address(),
		Country:  m.country,
		Session:  m.session,
		Last:     m.window.Last(),
		Average:  m.window.Average(),
		Max:      m.window.Max(),
		Min:      m.window.Min(),
		Errors:   m.window.Errors(),
		Samples:  m.window.Len(),
		Time:     m.now(),
	}
}
