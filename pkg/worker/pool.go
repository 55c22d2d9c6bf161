package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"lifeline/pkg/clock"
	"lifeline/pkg/consumer"
	"lifeline/pkg/logger"
	"lifeline/pkg/metrics"
	"lifeline/pkg/retry"
	"lifeline/pkg/writer"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool closed")

// Job represents a unit of work for a worker
type Job struct {
	Record  writer.ProgressRecord
	Message consumer.Message
}

// Options configures a WorkerPool.
type Options struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	// WriteRetry bounds retries of a failed batch write before its offsets are left uncommitted.
	WriteRetry retry.Options
	Clock      clock.Clock
}

// WorkerPool fans jobs out to workers by SKU, so every event of one player is written by the
// same worker in arrival order.
type WorkerPool struct {
	logger   *logger.Logger
	writer   writer.PostgresWriter
	consumer consumer.Consumer
	opts     Options
	inputs   []chan Job
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewWorkerPool creates a new WorkerPool instance
func NewWorkerPool(l *logger.Logger, w writer.PostgresWriter, c consumer.Consumer, opts Options) *WorkerPool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.WriteRetry.MaxAttempts < 1 {
		opts.WriteRetry = retry.DefaultOptions()
		opts.WriteRetry.MaxAttempts = 3
		opts.WriteRetry.InitialInterval = 100 * time.Millisecond
		opts.WriteRetry.MaxInterval = 2 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}

	inputs := make([]chan Job, opts.Workers)
	for i := range inputs {
		inputs[i] = make(chan Job, opts.BatchSize)
	}

	return &WorkerPool{
		logger:   l.Named("worker"),
		writer:   w,
		consumer: c,
		opts:     opts,
		inputs:   inputs,
	}
}

// Start initializes the worker goroutines
func (p *WorkerPool) Start(ctx context.Context) {
	for i := range p.inputs {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Submit routes a job to the worker owning its SKU.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.inputs[p.shard(job.Record.SKU)] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) shard(sku string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sku))
	return int(h.Sum32() % uint32(len(p.inputs)))
}

func (p *WorkerPool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("worker started", zap.Int("worker_id", id))

	buffer := writer.NewProgressBuffer(p.opts.BatchSize, p.opts.Clock)
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-p.inputs[id]:
			if !ok {
				p.flush(context.WithoutCancel(ctx), buffer)
				return
			}

			metrics.SyncerMessagesConsumedTotal.Inc()
			if buffer.Add(job.Record, job.Message) {
				p.flush(ctx, buffer)
			}

		case <-ticker.C:
			if buffer.Due(p.opts.FlushInterval) {
				p.flush(ctx, buffer)
			}

		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx), buffer)
			return
		}
	}
}

func (p *WorkerPool) flush(ctx context.Context, buffer writer.BatchBuffer) {
	batch := buffer.Take()
	if batch.Len() == 0 {
		return
	}

	start := p.opts.Clock.Now()
	opts := p.opts.WriteRetry
	opts.OnRetry = func(attempt int, err error) {
		p.logger.Warn("batch write failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	err := retry.Do(ctx, func(int) error {
		return p.writer.WriteBatch(ctx, batch.Records)
	}, opts)
	if err != nil {
		// Offsets stay uncommitted so the batch is redelivered after a restart.
		p.logger.Error("failed to write batch", err, zap.Int("size", batch.Len()))
		metrics.SyncerWriteErrorsTotal.Inc()
		return
	}
	metrics.SyncerUpsertLatency.Observe(p.opts.Clock.Now().Sub(start).Seconds())
	metrics.SyncerBatchWritesTotal.Inc()

	if err := p.consumer.Commit(ctx, batch.Messages...); err != nil {
		p.logger.Error("failed to commit offsets", err, zap.Int64("last_offset", batch.LastOffset()))
	}
}

// Shutdown stops accepting jobs, flushes what the workers hold and waits for them.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, in := range p.inputs {
			close(in)
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
