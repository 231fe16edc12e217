package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pointgrid/loyalty-core/internal/config"
	"github.com/pointgrid/loyalty-core/internal/queue"
	"github.com/pointgrid/loyalty-core/internal/services"
	"github.com/pointgrid/loyalty-core/pkg/logger"
	"github.com/pointgrid/loyalty-core/pkg/redis"
	"github.com/pointgrid/loyalty-core/pkg/worker"
)

const ProcessingTimeout = time.Second * 5
const ShutdownTimeout = time.Minute

// NotifierService drains the notification stream and hands each event to a
// Sender. Delivery failures are retried by the queue's visibility timeout,
// not by the service.
type NotifierService struct {
	adapter redis.RedisAdapter
	queues  []*queue.Queue
	sender  Sender
	metrics *ServiceMetrics
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	worker  *worker.WorkerManager
}

// Sender delivers one event to the outside world (email, push, webhook).
type Sender interface {
	Send(ctx context.Context, e services.Event) error
	GetType() string
}

func NewNotifierService(redisAdapter redis.RedisAdapter, sender Sender) (*NotifierService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	service := &NotifierService{
		adapter: redisAdapter,
		queues:  make([]*queue.Queue, 0),
		sender:  sender,
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(10_000, 50, nil),
	}
	return service, nil
}

// Start spins up the worker pool and the queue consumers.
func (s *NotifierService) Start() error {
	logger.Info("Starting Notifier Service...", "sender", s.sender.GetType())

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < 4; i++ {
		queueConfig := queue.QueueConfig{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", config.Get().QueueConsumerName, i),
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		}

		q, err := queue.NewQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}

		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
		logger.Info("Started consumer instance", "instance", i)
	}

	s.wg.Add(1)
	go s.metricsReporter()

	logger.Info("Notifier Service started", "consumers", len(s.queues))
	return nil
}

func (s *NotifierService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
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

func (s *NotifierService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("Notifier metrics",
		"total_delivered", stats["total_delivered"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("Queue stats", "queue", i, "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
		}
	}
}

// Stop gracefully stops the service.
func (s *NotifierService) Stop() {
	logger.Info("Shutting down Notifier Service...")

	s.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan bool, len(s.queues))

	for i, q := range s.queues {
		go func(index int, queue *queue.Queue) {
			if err := queue.Stop(timeout); err != nil {
				logger.Error("Error stopping queue", "queue", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}

	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("Timeout waiting for queues to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("Notifier Service stopped")
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler receives messages from the queue and enqueues them to the
// worker pool, blocking until the worker reports back so ack/nack follows
// the actual delivery outcome.
func (s *NotifierService) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	job := &jobResult{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	}

	s.worker.Enqueue(job)

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to deliver notification: %w", msgCtx.Err())
	}
}

func (s *NotifierService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	msg := jobRes.msg
	start := time.Now()
	var resultErr error

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("Job context cancelled before delivery started", "worker", workerIndex)
		return
	default:
	}

	var event services.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// malformed payloads never succeed on retry; ack and move on
		s.metrics.RecordFailure()
		logger.Error("Failed to decode notification event", "worker", workerIndex, "error", err)
		resultErr = nil
	} else if err := s.sender.Send(jobRes.ctx, event); err != nil {
		s.metrics.RecordFailure()
		logger.Error("Failed to deliver notification", "worker", workerIndex, "kind", event.Kind, "error", err)
		resultErr = err
	} else {
		s.metrics.RecordSuccess(time.Since(start))
		resultErr = nil
	}

	select {
	case jobRes.resultChan <- resultErr:
	case <-jobRes.ctx.Done():
		logger.Warn("Context cancelled while sending result, message handler timed out", "worker", workerIndex)
	}
}
