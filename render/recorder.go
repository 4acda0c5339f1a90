package render

import (
	"errors"
	"sync"
	"time"

	"github.com/iedon/gameping-agent/monitor"
)

// Report is the latest thing shown to the user
type Report struct {
	Snapshot *monitor.Snapshot `json:"snapshot,omitempty"`
	Status   string            `json:"status,omitempty"`
	Updated  time.Time         `json:"updated"`
}

// Recorder keeps a copy of the latest report for readers on other goroutines
type Recorder struct {
	mu     sync.RWMutex
	report Report
	now    func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) RenderSnapshot(s monitor.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = Report{Snapshot: &s, Updated: r.now()}
	return nil
}

func (r *Recorder) RenderStatus(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = Report{Status: msg, Updated: r.now()}
	return nil
}

// Latest returns the most recent report and whether one was recorded
func (r *Recorder) Latest() (Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report, !r.report.Updated.IsZero()
}

type multi []monitor.Renderer

// Multi fans every report out to all renderers
func Multi(renderers ...monitor.Renderer) monitor.Renderer {
	return multi(renderers)
}

func (m multi) RenderSnapshot(s monitor.Snapshot) error {
	var errs []error
	for _, r := range m {
		if err := r.RenderSnapshot(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) RenderStatus(msg string) error {
	var errs []error
	for _, r := range m {
		if err := r.RenderStatus(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
