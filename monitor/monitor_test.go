package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/iedon/gameping-agent/latency"
	"github.com/iedon/gameping-agent/probe"
	"github.com/iedon/gameping-agent/resolver"
)

type fakeResolver struct {
	pid     int32
	procErr error
	addr    netip.Addr
	addrErr error

	lastName string
	lastPID  int32
}

func (f *fakeResolver) FindProcess(_ context.Context, name string) (int32, error) {
	f.lastName = name
	return f.pid, f.procErr
}

func (f *fakeResolver) FindRemoteEndpoint(_ context.Context, pid int32) (netip.Addr, error) {
	f.lastPID = pid
	return f.addr, f.addrErr
}

type probeResult struct {
	rtt uint32
	err error
}

type fakeProber struct {
	results []probeResult
	calls   int
	onProbe func()
}

func (f *fakeProber) Probe(_ context.Context, addr netip.Addr) (uint32, error) {
	f.calls++
	if f.onProbe != nil {
		f.onProbe()
	}
	if len(f.results) == 0 {
		return 0, &probe.Error{Addr: addr, Reason: "no scripted result"}
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.rtt, r.err
}

type recorder struct {
	snapshots []Snapshot
	statuses  []string
	onRender  func()
}

func (r *recorder) RenderSnapshot(s Snapshot) error {
	r.snapshots = append(r.snapshots, s)
	if r.onRender != nil {
		r.onRender()
	}
	return nil
}

func (r *recorder) RenderStatus(msg string) error {
	r.statuses = append(r.statuses, msg)
	if r.onRender != nil {
		r.onRender()
	}
	return nil
}

type fakeLocator map[string]string

func (f fakeLocator) Country(addr netip.Addr) (string, error) {
	c, ok := f[addr.String()]
	if !ok {
		return "", fmt.Errorf("no record for %s", addr)
	}
	return c, nil
}

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestMonitor(r Resolver, p Prober, out Renderer, opts ...Option) *Monitor {
	opts = append(opts, WithClock(func() time.Time { return fixedTime }))
	return New(Config{ProcessName: "game", Interval: time.Millisecond}, r, p, out, opts...)
}

func TestNewDefaults(t *testing.T) {
	m := New(Config{}, &fakeResolver{}, &fakeProber{}, &recorder{})
	if m.cfg.ProcessName != DefaultProcessName {
		t.Errorf("ProcessName = %q, want %q", m.cfg.ProcessName, DefaultProcessName)
	}
	if m.cfg.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", m.cfg.Interval, DefaultInterval)
	}
	if m.window.Cap() != latency.DefaultCapacity {
		t.Errorf("window capacity = %d, want %d", m.window.Cap(), latency.DefaultCapacity)
	}
}

func TestTickDiscoveryFailures(t *testing.T) {
	tests := []struct {
		name       string
		res        *fakeResolver
		want       Outcome
		wantStatus string
	}{
		{
			name:       "process not found",
			res:        &fakeResolver{procErr: fmt.Errorf("%w: %q", resolver.ErrProcessNotFound, "game")},
			want:       OutcomeProcessNotFound,
			wantStatus: `Process "game" not found`,
		},
		{
			name:       "no connection",
			res:        &fakeResolver{pid: 7, addrErr: resolver.ErrEndpointNotFound},
			want:       OutcomeEndpointNotFound,
			wantStatus: "No game connection",
		},
		{
			name:       "table failure",
			res:        &fakeResolver{procErr: errors.New("list processes: permission denied")},
			want:       OutcomeDiscoveryFailed,
			wantStatus: "Discovery failed: list processes: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &fakeProber{}
			out := &recorder{}
			m := newTestMonitor(tt.res, prober, out)

			got, err := m.Tick(context.Background())
			if err != nil {
				t.Fatalf("Tick() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Tick() = %v, want %v", got, tt.want)
			}
			if prober.calls != 0 {
				t.Errorf("prober called %d times, want 0", prober.calls)
			}
			if len(out.snapshots) != 0 {
				t.Errorf("rendered %d snapshots, want 0", len(out.snapshots))
			}
			if len(out.statuses) != 1 || out.statuses[0] != tt.wantStatus {
				t.Errorf("statuses = %q, want [%q]", out.statuses, tt.wantStatus)
			}
		})
	}
}

func TestTickMalformedAddressIsFatal(t *testing.T) {
	res := &fakeResolver{pid: 7, addrErr: fmt.Errorf("list tcp sockets: %w", resolver.ErrMalformedAddress)}
	m := newTestMonitor(res, &fakeProber{}, &recorder{})

	_, err := m.Tick(context.Background())
	if !errors.Is(err, resolver.ErrMalformedAddress) {
		t.Errorf("Tick() error = %v, want ErrMalformedAddress", err)
	}
}

func TestTickRecordsSamples(t *testing.T) {
	res := &fakeResolver{pid: 42, addr: netip.MustParseAddr("124.150.157.30")}
	prober := &fakeProber{results: []probeResult{{rtt: 10}, {rtt: 50}, {rtt: 30}}}
	out := &recorder{}
	m := newTestMonitor(res, prober, out)

	for i := 0; i < 3; i++ {
		got, err := m.Tick(context.Background())
		if err != nil || got != OutcomeSample {
			t.Fatalf("tick %d = %v, %v", i, got, err)
		}
	}

	if res.lastName != "game" || res.lastPID != 42 {
		t.Errorf("resolver called with name=%q pid=%d", res.lastName, res.lastPID)
	}
	if len(out.snapshots) != 3 {
		t.Fatalf("rendered %d snapshots, want 3", len(out.snapshots))
	}

	s := out.snapshots[2]
	want := Snapshot{
		Endpoint: "124.150.157.30",
		Session:  s.Session,
		Last:     30,
		Average:  30,
		Max:      50,
		Min:      10,
		Samples:  3,
		Time:     fixedTime,
	}
	if s != want {
		t.Errorf("snapshot = %+v, want %+v", s, want)
	}
	if s.Session == "" {
		t.Error("session id not assigned")
	}
}

func TestTickProbeFailureIsCounted(t *testing.T) {
	addr := netip.MustParseAddr("10.1.1.1")
	res := &fakeResolver{pid: 1, addr: addr}
	prober := &fakeProber{results: []probeResult{
		{rtt: 20},
		{err: &probe.Error{Addr: addr, Reason: "no reply within 4s"}},
		{err: &probe.Error{Addr: addr, Reason: "send echo", Err: errors.New("no route to host")}},
	}}
	out := &recorder{}
	m := newTestMonitor(res, prober, out)

	want := []Outcome{OutcomeSample, OutcomeProbeFailed, OutcomeProbeFailed}
	for i, w := range want {
		got, err := m.Tick(context.Background())
		if err != nil {
			t.Fatalf("tick %d error = %v", i, err)
		}
		if got != w {
			t.Errorf("tick %d = %v, want %v", i, got, w)
		}
	}

	s := out.snapshots[len(out.snapshots)-1]
	if s.Errors != 2 {
		t.Errorf("Errors = %d, want 2", s.Errors)
	}
	if s.Last != 20 || s.Samples != 1 || s.Average != 20 {
		t.Errorf("ping stats changed by failures: %+v", s)
	}
}

func TestTickEndpointChangeResets(t *testing.T) {
	res := &fakeResolver{pid: 1, addr: netip.MustParseAddr("1.1.1.1")}
	prober := &fakeProber{results: []probeResult{
		{rtt: 20},
		{err: errors.New("timeout")},
		{rtt: 25},
		{rtt: 90},
	}}
	out := &recorder{}
	loc := fakeLocator{"1.1.1.1": "AU", "2.2.2.2": "FR"}
	m := newTestMonitor(res, prober, out, WithLocator(loc))

	for i := 0; i < 3; i++ {
		if _, err := m.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	before := out.snapshots[2]
	if before.Session != out.snapshots[0].Session {
		t.Error("session changed while endpoint stayed the same")
	}
	if before.Country != "AU" || before.Samples != 2 || before.Errors != 1 {
		t.Errorf("unexpected snapshot before change: %+v", before)
	}

	res.addr = netip.MustParseAddr("2.2.2.2")
	if _, err := m.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	after := out.snapshots[3]

	if after.Session == before.Session {
		t.Error("session not renewed after endpoint change")
	}
	want := Snapshot{
		Endpoint: "2.2.2.2",
		Country:  "FR",
		Session:  after.Session,
		Last:     90,
		Average:  90,
		Max:      90,
		Min:      90,
		Samples:  1,
		Time:     fixedTime,
	}
	if after != want {
		t.Errorf("snapshot after change = %+v, want %+v", after, want)
	}
}

func TestTickDiscoveryFailureKeepsStats(t *testing.T) {
	res := &fakeResolver{pid: 1, addr: netip.MustParseAddr("1.1.1.1")}
	prober := &fakeProber{results: []probeResult{{rtt: 15}, {rtt: 17}}}
	out := &recorder{}
	m := newTestMonitor(res, prober, out)

	m.Tick(context.Background())
	res.procErr = resolver.ErrProcessNotFound
	m.Tick(context.Background())
	res.procErr = nil
	m.Tick(context.Background())

	s := out.snapshots[len(out.snapshots)-1]
	if s.Samples != 2 || s.Min != 15 || s.Max != 17 || s.Average != 16 {
		t.Errorf("stats lost across discovery failure: %+v", s)
	}
}

func TestGeoLookupFailureLeavesCountryEmpty(t *testing.T) {
	res := &fakeResolver{pid: 1, addr: netip.MustParseAddr("8.8.8.8")}
	out := &recorder{}
	m := newTestMonitor(res, &fakeProber{results: []probeResult{{rtt: 3}}}, out, WithLocator(fakeLocator{}))

	if _, err := m.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c := out.snapshots[0].Country; c != "" {
		t.Errorf("Country = %q, want empty", c)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := &fakeResolver{procErr: resolver.ErrProcessNotFound}
	out := &recorder{}
	out.onRender = func() {
		if len(out.statuses) == 3 {
			cancel()
		}
	}
	m := newTestMonitor(res, &fakeProber{}, out)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if len(out.statuses) != 3 {
		t.Errorf("ticks = %d, want 3", len(out.statuses))
	}
	for _, s := range out.statuses {
		if !strings.Contains(s, "not found") {
			t.Errorf("status = %q", s)
		}
	}
}

func TestRunReturnsFatalError(t *testing.T) {
	res := &fakeResolver{pid: 1, addrErr: resolver.ErrMalformedAddress}
	m := newTestMonitor(res, &fakeProber{}, &recorder{})

	if err := m.Run(context.Background()); !errors.Is(err, resolver.ErrMalformedAddress) {
		t.Errorf("Run() error = %v, want ErrMalformedAddress", err)
	}
}

func TestTickCancelledProbeIsNotCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := netip.MustParseAddr("10.1.1.1")
	res := &fakeResolver{pid: 1, addr: addr}
	prober := &fakeProber{results: []probeResult{
		{rtt: 20},
		{err: &probe.Error{Addr: addr, Reason: "cancelled", Err: context.Canceled}},
	}}
	out := &recorder{}
	m := newTestMonitor(res, prober, out)

	if _, err := m.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	prober.onProbe = cancel

	got, err := m.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got != OutcomeCancelled {
		t.Errorf("Tick() = %v, want %v", got, OutcomeCancelled)
	}
	if m.window.Errors() != 0 {
		t.Errorf("Errors = %d, want 0", m.window.Errors())
	}
	if len(out.snapshots) != 1 {
		t.Errorf("snapshots rendered = %d, want 1", len(out.snapshots))
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeProbeFailed.String() != "probe failed" {
		t.Errorf("String() = %q", OutcomeProbeFailed.String())
	}
	if OutcomeCancelled.String() != "cancelled" {
		t.Errorf("String() = %q", OutcomeCancelled.String())
	}
	if Outcome(99).String() != "outcome(99)" {
		t.Errorf("String() = %q", Outcome(99).String())
	}
}
