package sweeper

import (
	"sync/atomic"
	"time"
)

type ServiceMetrics struct {
	totalSweeps     int64
	totalRefunded   int64
	totalFailed     int64
	totalDurationNs int64
	lastResetNs     int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		lastResetNs: time.Now().UnixNano(),
	}
}

func (m *ServiceMetrics) RecordSweep(refunded int, duration time.Duration) {
	atomic.AddInt64(&m.totalSweeps, 1)
	atomic.AddInt64(&m.totalRefunded, int64(refunded))
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	sweeps := atomic.LoadInt64(&m.totalSweeps)
	refunded := atomic.LoadInt64(&m.totalRefunded)
	failed := atomic.LoadInt64(&m.totalFailed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	lastResetNs := atomic.LoadInt64(&m.lastResetNs)

	elapsed := time.Since(time.Unix(0, lastResetNs)).Seconds()

	avgDuration := time.Duration(0)
	if sweeps > 0 {
		avgDuration = time.Duration(durationNs / sweeps)
	}

	stats := map[string]interface{}{
		"total_sweeps":    sweeps,
		"total_refunded":  refunded,
		"total_failed":    failed,
		"avg_duration_ms": avgDuration.Milliseconds(),
		"uptime_seconds":  elapsed,
	}

	return stats
}

func (m *ServiceMetrics) Reset() {
	atomic.StoreInt64(&m.totalSweeps, 0)
	atomic.StoreInt64(&m.totalRefunded, 0)
	atomic.StoreInt64(&m.totalFailed, 0)
	atomic.StoreInt64(&m.totalDurationNs, 0)
	atomic.StoreInt64(&m.lastResetNs, time.Now().UnixNano())
}
