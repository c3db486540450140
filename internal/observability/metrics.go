package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests and auth activity.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	loginCount   map[string]int64
	revokedCount map[string]int64
	sweepRuns    int64
	sweepPurged  int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		loginCount:   make(map[string]int64),
		revokedCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
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

// RecordLogin counts login attempts per namespace and outcome.
func (m *Metrics) RecordLogin(namespace string, success bool) {
	if m == nil {
		return
	}
	key := namespace + "|" + strconv.FormatBool(success)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCount[key]++
}

// RecordRevocation counts revocations per reason.
func (m *Metrics) RecordRevocation(reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedCount[reason]++
}

// RecordSweep counts sweep runs and purged rows.
func (m *Metrics) RecordSweep(purged int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns++
	m.sweepPurged += purged
}

// LoginCount returns the counter for a namespace/outcome pair.
func (m *Metrics) LoginCount(namespace string, success bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginCount[namespace+"|"+strconv.FormatBool(success)]
}

// RevocationCount returns the counter for a reason.
func (m *Metrics) RevocationCount(reason string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revokedCount[reason]
}
