package observability

import (
	"strconv"
	"sync"
	"time"
)

// Verification outcomes recorded by RecordVerification.
const (
	VerificationOK           = "ok"
	VerificationUserNotFound = "user_not_found"
	VerificationHashMismatch = "hash_mismatch"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	verificationCount map[string]int64
	changeCount       map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:      make(map[string]int64),
		errorCount:        make(map[string]int64),
		verificationCount: make(map[string]int64),
		changeCount:       make(map[string]int64),
	}
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

// RecordVerification counts link verification outcomes.
func (m *Metrics) RecordVerification(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verificationCount[outcome]++
}

// RecordChange counts applied subscription change actions.
func (m *Metrics) RecordChange(action string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeCount[action]++
}

// VerificationCounts returns a copy of verification outcome counters.
func (m *Metrics) VerificationCounts() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.verificationCount))
	for k, v := range m.verificationCount {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
