package analysis

import (
	"sync/atomic"
	"time"

	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

// Metrics counts scans by outcome. Safe for concurrent use.
type Metrics struct {
	totalScans     atomic.Int64
	visionFailed   atomic.Int64
	visionDegraded atomic.Int64
	fallbacks      atomic.Int64
	persistErrors  atomic.Int64
	totalLatency   atomic.Int64
	lastScanTime   atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record counts one finished scan
func (m *Metrics) Record(r *Report, latency time.Duration) {
	m.totalScans.Add(1)
	m.totalLatency.Add(latency.Milliseconds())
	m.lastScanTime.Store(time.Now().Unix())

	switch r.Outcome {
	case vision.OutcomeFailed:
		m.visionFailed.Add(1)
	case vision.OutcomeDegraded:
		m.visionDegraded.Add(1)
	}
	if r.Recommendations.FallbackNeeded {
		m.fallbacks.Add(1)
	}
}

func (m *Metrics) IncrementPersistErrors() {
	m.persistErrors.Add(1)
}

func (m *Metrics) GetTotalScans() int64 {
	return m.totalScans.Load()
}

func (m *Metrics) GetAvgLatency() float64 {
	scans := m.totalScans.Load()
	if scans == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / float64(scans)
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	TotalScans     int64   `json:"total_scans"`
	VisionFailed   int64   `json:"vision_failed"`
	VisionDegraded int64   `json:"vision_degraded"`
	Fallbacks      int64   `json:"fallbacks"`
	PersistErrors  int64   `json:"persist_errors"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
	LastScanUnix   int64   `json:"last_scan_unix"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalScans:     m.totalScans.Load(),
		VisionFailed:   m.visionFailed.Load(),
		VisionDegraded: m.visionDegraded.Load(),
		Fallbacks:      m.fallbacks.Load(),
		PersistErrors:  m.persistErrors.Load(),
		AvgLatencyMS:   m.GetAvgLatency(),
		LastScanUnix:   m.lastScanTime.Load(),
	}
}
