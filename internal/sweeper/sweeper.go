package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/pointgrid/loyalty-core/pkg/logger"
	"github.com/pointgrid/loyalty-core/pkg/prom"
)

const DefaultInterval = time.Minute * 5
const ReportInterval = time.Second * 30
const SweepTimeout = time.Minute

// Sweeper drives voucher expiry on a fixed interval. Every tick it asks
// the voucher service to refund pending vouchers past their expiry. A
// missed or doubled tick is harmless; the status transition inside the
// service guards against double refunds.
type Sweeper struct {
	vouchers VoucherSweep
	interval time.Duration
	metrics  *ServiceMetrics
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

type VoucherSweep interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

func New(vouchers VoucherSweep, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		vouchers: vouchers,
		interval: interval,
		metrics:  NewServiceMetrics(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the sweep loop and a metrics reporter in the background. An
// immediate first sweep clears any backlog accumulated while the process
// was down.
func (s *Sweeper) Start() {
	logger.Info("Starting Voucher Sweeper...", "interval", s.interval)

	s.wg.Add(2)
	go s.run()
	go s.metricsReporter()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, SweepTimeout)
	defer cancel()

	start := time.Now()
	refunded, err := s.vouchers.SweepExpired(ctx, start)
	duration := time.Since(start)

	if err != nil {
		s.metrics.RecordFailure()
		logger.Error("Voucher sweep failed", "error", err)
		return
	}

	s.metrics.RecordSweep(refunded, duration)
	prom.AddVoucherSweepDuration(duration.Seconds())
	if refunded > 0 {
		prom.AddVouchersRefunded(float64(refunded))
		logger.Info("Voucher sweep completed", "refunded", refunded, "duration_ms", duration.Milliseconds())
	}
}

func (s *Sweeper) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Sweeper) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("Sweeper metrics",
		"total_sweeps", stats["total_sweeps"],
		"total_refunded", stats["total_refunded"],
		"total_failed", stats["total_failed"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	logger.Info("Shutting down Voucher Sweeper...")
	s.cancel()
	s.wg.Wait()
	s.reportMetrics()
	logger.Info("Voucher Sweeper stopped")
}
