// Package worker turns queued diagnostics into sales opportunities.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/clarisa/internal/adapters/repository"
	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/pkg/logger"
	"github.com/okian/clarisa/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// OpportunityCreator builds and persists the opportunity for a diagnostic.
type OpportunityCreator interface {
	CreateOpportunityFromDiagnostic(ctx context.Context, d model.Diagnostic) (model.Opportunity, error)
}

// Queue defines how workers receive diagnostics.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Diagnostic
}

// Worker processes diagnostics until its queue closes or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)
	// Shutdown stops the worker and waits for the current item.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	creator OpportunityCreator
	name    string

	processed *atomic.Int64
	failed    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, creator OpportunityCreator, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		creator:   creator,
		name:      "worker",
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case d, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, d); err != nil {
				w.logger.Error(ctx, "error processing diagnostic", logger.String("diagnostic_id", d.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker to stop after the current item.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, d model.Diagnostic) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	opp, err := w.creator.CreateOpportunityFromDiagnostic(ctx, d)
	switch {
	case errors.Is(err, repository.ErrConflict):
		// A retried diagnostic already has its opportunity.
		w.logger.Debug(ctx, "opportunity already exists", logger.String("diagnostic_id", d.ID))
		w.processed.Add(1)
		return nil
	case err != nil:
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "create_opportunity")
		metrics.RecordErrorByType("create_opportunity", "high")
		return fmt.Errorf("create opportunity for %s: %w", d.ID, err)
	}

	w.processed.Add(1)
	w.logger.Debug(ctx, "opportunity created",
		logger.String("diagnostic_id", d.ID),
		logger.String("opportunity_id", opp.ID),
		logger.String("prioridad", string(opp.Priority)),
	)
	return nil
}

// Stats is a point-in-time view of pool throughput.
type Stats struct {
	Workers   int   `json:"workers"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed atomic.Int64
	failed    atomic.Int64

	cancel context.CancelFunc

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one selects
// twice the CPU count.
func NewPool(workerCount int, q Queue, creator OpportunityCreator, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, creator, wopts...)
		w.processed = &p.processed
		w.failed = &p.failed
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool. Workers and their queue forwarders
// stop when ctx is done or Shutdown gives up on them.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stats reports worker count and processed/failed totals.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   len(p.workers),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Shutdown closes the queue if it can be closed and lets workers drain it.
// Workers still busy when ctx (capped at 30s) expires are told to stop and
// their context is canceled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
	}
	if p.cancel != nil {
		defer p.cancel()
	}
	if timedOut {
		if p.cancel != nil {
			p.cancel()
		}
		for _, w := range p.workers {
			_ = w.Shutdown(drainCtx)
		}
		if l, ok := p.queue.(interface{ Len(context.Context) int }); ok {
			if n := l.Len(ctx); n > 0 {
				p.logger.Warn(ctx, "diagnostics left undelivered", logger.Int("count", n))
			}
		}
		return fmt.Errorf("worker pool drain: %w", drainCtx.Err())
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
