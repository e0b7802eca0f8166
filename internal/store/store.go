// Package store is the in-process source of truth for telemetry: an
// append-only global event log plus per-run summary aggregates.
//
// The store is deliberately in-memory and single-process. A deployment
// that needs durability would put a storage boundary behind this API;
// nothing in the package leaks the in-memory representation to callers.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/kiseki/internal/model"
	"github.com/ashita-ai/kiseki/internal/telemetry"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("store: run not found")

// Store owns the canonical event log and run summaries. Safe for
// concurrent use: the append and counter update for a single event are
// atomic with respect to other events targeting the same run.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]*model.RunSummary
	events []model.Event
}

// New creates an empty Store.
func New() *Store {
	return &Store{runs: make(map[string]*model.RunSummary)}
}

// StartRun creates the summary for runID with status running and zeroed
// counters. An existing id is silently overwritten with a fresh summary;
// events already in the global log under that id are kept and remain
// visible through GetRunEvents, which filters by exact id.
func (s *Store) StartRun(runID, threadID string) model.RunSummary {
	run := &model.RunSummary{
		RunID:     runID,
		ThreadID:  threadID,
		StartTime: time.Now().UTC(),
		Status:    model.RunStatusRunning,
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	return copyRun(run)
}

// EndRun transitions a known run to a terminal status, stamps the end
// time, and computes the total duration. Unknown ids return ErrNotFound
// with no mutation, so callers can treat double-end or unknown-id
// idempotently at the call site. Non-terminal statuses are rejected:
// once ended, a run never returns to running.
func (s *Store) EndRun(runID string, status model.RunStatus) (model.RunSummary, error) {
	return s.EndRunAt(runID, status, time.Now().UTC())
}

// EndRunAt is EndRun with an explicit end time, for callers that
// backfill runs whose wall-clock span differs from processing time.
func (s *Store) EndRunAt(runID string, status model.RunStatus, endTime time.Time) (model.RunSummary, error) {
	if !status.Terminal() {
		return model.RunSummary{}, fmt.Errorf("store: end run %s: status %q is not terminal", runID, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return model.RunSummary{}, ErrNotFound
	}

	run.EndTime = &endTime
	run.Status = status
	durationMs := endTime.Sub(run.StartTime).Seconds() * 1000
	run.TotalDurationMs = &durationMs

	return copyRun(run), nil
}

// AddEvent appends the event to the global log unconditionally. When the
// event's run id is known, the run's event list and counters are updated
// under the same lock. Unknown run ids keep the event in the global log
// only — call StartRun first for events that should be aggregated.
func (s *Store) AddEvent(event model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	run, ok := s.runs[event.RunID]
	if !ok {
		return
	}
	run.AgentEvents = append(run.AgentEvents, event)

	switch event.Type {
	case model.EventLLMCall:
		run.TotalLLMCalls++
	case model.EventToolCall:
		run.TotalToolCalls++
	case model.EventDelegation:
		run.TotalDelegations++
	}
	if success, ok := event.Success(); ok && !success {
		run.ErrorCount++
	}
}

// GetRun returns a copy of the summary for runID, or ErrNotFound.
func (s *Store) GetRun(runID string) (model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return model.RunSummary{}, ErrNotFound
	}
	return copyRun(run), nil
}

// GetRunEvents returns every event whose run id matches exactly, in
// insertion order. The global log is the source, so events appended after
// the run ended (and events surviving a StartRun overwrite) are included.
func (s *Store) GetRunEvents(runID string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Event
	for _, e := range s.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// AllRuns returns copies of every run summary, in unspecified order.
func (s *Store) AllRuns() []model.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, copyRun(run))
	}
	return out
}

// DeleteRun removes the summary for runID. The global log is append-only,
// so the run's events are retained; only the aggregate view disappears.
func (s *Store) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return ErrNotFound
	}
	delete(s.runs, runID)
	return nil
}

// Clear resets the store to its empty state. Test isolation only.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]*model.RunSummary)
	s.events = nil
}

// EventCount returns the length of the global log.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// RunCount returns the number of run summaries.
func (s *Store) RunCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// RegisterMetrics registers observable OTEL gauges for store growth.
// Call after the global meter provider has been initialized.
func (s *Store) RegisterMetrics() {
	meter := telemetry.Meter("kiseki/store")

	_, _ = meter.Int64ObservableGauge("kiseki.store.events_total",
		metric.WithDescription("Current number of events in the global telemetry log"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.EventCount()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("kiseki.store.runs_total",
		metric.WithDescription("Current number of tracked run summaries"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.RunCount()))
			return nil
		}),
	)
}

// copyRun returns a defensive copy: the event slice is duplicated so
// callers can never mutate store state through a returned summary.
func copyRun(run *model.RunSummary) model.RunSummary {
	out := *run
	out.AgentEvents = make([]model.Event, len(run.AgentEvents))
	copy(out.AgentEvents, run.AgentEvents)
	return out
}
