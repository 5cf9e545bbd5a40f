// Package metrics aggregates in-memory counters for the control plane and
// exposes them in a plain-text format at /metrics.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates counters for HTTP requests, reconciliation outcomes,
// application lifecycle events, module notification failures, pull requests,
// and a live gauge of active streams.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	reconciles      map[string]uint64
	appEvents       map[string]uint64
	moduleFailures  map[string]uint64
	pullRequests    map[string]uint64
	activeStreams   atomic.Int64
	streamsStarted  atomic.Uint64
	streamsStopped  atomic.Uint64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can record immediately.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		reconciles:      make(map[string]uint64),
		appEvents:       make(map[string]uint64),
		moduleFailures:  make(map[string]uint64),
		pullRequests:    make(map[string]uint64),
	}
}

// Default returns the shared process-wide recorder.
func Default() *Recorder {
	return defaultRecorder
}

// RecordRequest accumulates a completed HTTP request.
func (r *Recorder) RecordRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{method: method, path: path, status: fmt.Sprintf("%d", status)}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// RecordReconcile counts one ApplyOriginMap outcome.
func (r *Recorder) RecordReconcile(outcome string) {
	r.mu.Lock()
	r.reconciles[outcome]++
	r.mu.Unlock()
}

// RecordApplicationEvent counts an application lifecycle event such as
// "created", "create_failed", or "deleted".
func (r *Recorder) RecordApplicationEvent(event string) {
	r.mu.Lock()
	r.appEvents[event]++
	r.mu.Unlock()
}

// RecordModuleFailure counts a failed module notification or pull.
func (r *Recorder) RecordModuleFailure(module string) {
	r.mu.Lock()
	r.moduleFailures[module]++
	r.mu.Unlock()
}

// RecordPull counts a pull-stream resolution outcome: "delegated",
// "unresolved", or "failed".
func (r *Recorder) RecordPull(outcome string) {
	r.mu.Lock()
	r.pullRequests[outcome]++
	r.mu.Unlock()
}

// StreamStarted bumps the active stream gauge.
func (r *Recorder) StreamStarted() {
	r.activeStreams.Add(1)
	r.streamsStarted.Add(1)
}

// StreamStopped decrements the active stream gauge.
func (r *Recorder) StreamStopped() {
	r.activeStreams.Add(-1)
	r.streamsStopped.Add(1)
}

// ActiveStreams reports the current gauge value.
func (r *Recorder) ActiveStreams() int64 {
	return r.activeStreams.Load()
}

// ReconcileCount returns the counter for one reconcile outcome.
func (r *Recorder) ReconcileCount(outcome string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reconciles[outcome]
}

// ApplicationEventCount returns the counter for one lifecycle event.
func (r *Recorder) ApplicationEventCount(event string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.appEvents[event]
}

// PullCount returns the counter for one pull outcome.
func (r *Recorder) PullCount(outcome string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pullRequests[outcome]
}

// Handler serves the recorder's counters as plain text, one metric per line,
// sorted for stable output.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		r.write(w)
	})
}

func (r *Recorder) write(w io.Writer) {
	r.mu.RLock()
	lines := make([]string, 0,
		len(r.requestCount)+len(r.reconciles)+len(r.appEvents)+len(r.moduleFailures)+len(r.pullRequests)+3)

	for label, count := range r.requestCount {
		lines = append(lines, fmt.Sprintf("http_requests_total{method=%q,path=%q,status=%q} %d",
			label.method, label.path, label.status, count))
		lines = append(lines, fmt.Sprintf("http_request_duration_ms_total{method=%q,path=%q,status=%q} %d",
			label.method, label.path, label.status, r.requestDuration[label].Milliseconds()))
	}
	for outcome, count := range r.reconciles {
		lines = append(lines, fmt.Sprintf("reconciles_total{outcome=%q} %d", outcome, count))
	}
	for event, count := range r.appEvents {
		lines = append(lines, fmt.Sprintf("application_events_total{event=%q} %d", event, count))
	}
	for module, count := range r.moduleFailures {
		lines = append(lines, fmt.Sprintf("module_failures_total{module=%q} %d", module, count))
	}
	for outcome, count := range r.pullRequests {
		lines = append(lines, fmt.Sprintf("pull_requests_total{outcome=%q} %d", outcome, count))
	}
	r.mu.RUnlock()

	lines = append(lines, fmt.Sprintf("active_streams %d", r.activeStreams.Load()))
	lines = append(lines, fmt.Sprintf("streams_started_total %d", r.streamsStarted.Load()))
	lines = append(lines, fmt.Sprintf("streams_stopped_total %d", r.streamsStopped.Load()))

	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
