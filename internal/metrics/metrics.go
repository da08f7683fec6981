package metrics

import (
	"sort"
	"sync"
	"time"
)

// Outcome classifies how a request finished.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeNotFound = "not_found"
)

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	outcomes      map[string]map[string]int64
	responseTimes map[string][]time.Duration
	reloads       int64
	dbHealthy     bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                     `json:"total_requests"`
	Uptime        time.Duration             `json:"uptime"`
	Reloads       int64                     `json:"reloads"`
	DBHealthy     bool                      `json:"db_healthy"`
	Handlers      map[string]HandlerMetrics `json:"handlers"`
}

type HandlerMetrics struct {
	Requests    int64            `json:"requests"`
	Outcomes    map[string]int64 `json:"outcomes"`
	AvgResponse time.Duration    `json:"avg_response"`
	P50Response time.Duration    `json:"p50_response"`
	P95Response time.Duration    `json:"p95_response"`
	P99Response time.Duration    `json:"p99_response"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		outcomes:      make(map[string]map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		dbHealthy:     true,
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementRequests(handler string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[handler]++
}

func (m *Metrics) RecordOutcome(handler, outcome string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.outcomes[handler] == nil {
		m.outcomes[handler] = make(map[string]int64)
	}
	m.outcomes[handler][outcome]++

	m.responseTimes[handler] = append(m.responseTimes[handler], duration)
	if len(m.responseTimes[handler]) > 1000 {
		m.responseTimes[handler] = m.responseTimes[handler][1:]
	}
}

func (m *Metrics) RecordReload() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.reloads++
}

func (m *Metrics) UpdateDBHealth(healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.dbHealthy = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:    time.Since(m.startTime),
		Reloads:   m.reloads,
		DBHealthy: m.dbHealthy,
		Handlers:  make(map[string]HandlerMetrics),
	}

	allHandlers := make(map[string]bool)
	for handler := range m.requests {
		allHandlers[handler] = true
	}
	for handler := range m.outcomes {
		allHandlers[handler] = true
	}

	for handler := range allHandlers {
		snap.TotalRequests += m.requests[handler]

		// The snapshot outlives the lock and gets iterated by encoders,
		// so it must not alias the live maps.
		hm := HandlerMetrics{
			Requests: m.requests[handler],
			Outcomes: make(map[string]int64, len(m.outcomes[handler])),
		}
		for outcome, count := range m.outcomes[handler] {
			hm.Outcomes[outcome] = count
		}

		durations := m.responseTimes[handler]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			hm.AvgResponse = average(sorted)
			hm.P50Response = percentile(sorted, 0.50)
			hm.P95Response = percentile(sorted, 0.95)
			hm.P99Response = percentile(sorted, 0.99)
		}

		snap.Handlers[handler] = hm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
