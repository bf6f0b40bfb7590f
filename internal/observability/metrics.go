package observability

import (
	"strconv"
	"sync"
	"time"
)

// Counter names recorded by the ticket engine and sweeper.
const (
	MetricTicketsCreated   = "tickets_created"
	MetricTicketsActivated = "tickets_activated"
	MetricTicketsClosed    = "tickets_closed"
	MetricTicketsRetired   = "tickets_retired"
	MetricSanctionsApplied = "sanctions_applied"
	MetricSanctionsFailed  = "sanctions_failed"
	MetricSweepRuns        = "sweep_runs"
	MetricSweepsSkipped    = "sweeps_skipped"
	MetricStoreFlushErrors = "store_flush_errors"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	counters     map[string]int64
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		counters:     make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// Inc increments a named counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add increments a named counter by delta.
func (m *Metrics) Add(name string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	out := map[string]map[string]int64{
		"tickets":  {},
		"requests": {},
		"errors":   {},
	}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.counters {
		out["tickets"][k] = v
	}
	for k, v := range m.requestCount {
		out["requests"][k] = v
	}
	for k, v := range m.errorCount {
		out["errors"][k] = v
	}
	return out
}

// Counter returns the current value of a named counter.
func (m *Metrics) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
