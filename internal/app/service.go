// Package service wires the intake queue, worker pool, store and scheduler
// into the pipeline operations the HTTP API exposes.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	intakequeue "github.com/okian/clarisa/internal/adapters/mq/queue"
	workerpool "github.com/okian/clarisa/internal/adapters/mq/worker"
	"github.com/okian/clarisa/internal/adapters/repository"
	"github.com/okian/clarisa/internal/domain/dedupe"
	"github.com/okian/clarisa/pkg/logger"
)

const (
	defaultListLimit    = 100
	defaultMaxListLimit = 1000
	stopTimeout         = 10 * time.Second
)

// Store drivers accepted by WithStoreDriver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Service implements the pipeline operations.
type Service struct {
	// lifecycle serializes Start and Stop; mu guards the fields below.
	lifecycle sync.Mutex
	mu        sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	queue      intakequeue.Queue
	workerPool *workerpool.Pool
	scheduler  *cron.Cron

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	maxListLimit  int
	storeDriver   string
	sqlitePath    string
	sqlOptions    []repository.SQLOption
	statsSchedule string
	injectedStore repository.Store

	now   func() time.Time
	newID func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of intake workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the intake queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many diagnostic ids are remembered. Zero keeps
// every id.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxListLimit caps the page size of list operations.
func WithMaxListLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxListLimit = limit
		}
	}
}

// WithStoreDriver selects the memory or sqlite store. path is only used by
// the sqlite driver.
func WithStoreDriver(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
			s.sqlitePath = path
		}
	}
}

// WithSQLOptions tunes the store opened by the sqlite driver.
func WithSQLOptions(opts ...repository.SQLOption) Option {
	return func(s *Service) {
		s.sqlOptions = append(s.sqlOptions, opts...)
	}
}

// WithStore uses st instead of opening one. The service does not close it.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		s.injectedStore = st
	}
}

// WithStatsSchedule sets the cron spec for refreshing pipeline gauges.
// An empty spec disables the job.
func WithStatsSchedule(spec string) Option {
	return func(s *Service) {
		s.statsSchedule = spec
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     10_000,
		dedupeSize:    100_000,
		maxListLimit:  defaultMaxListLimit,
		storeDriver:   DriverMemory,
		statsSchedule: "@every 1m",
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the worker pool and scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.isStarted() {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting pipeline service...")

	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	deduper := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	queue := intakequeue.NewInMemoryQueue(intakequeue.WithCapacity(s.queueSize))

	// Workers outlive the Start ctx; Stop shuts them down.
	pool := workerpool.NewPool(s.workerCount, queue, boundCreator{svc: s, store: store})
	pool.Start(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.store, s.deduper, s.queue, s.workerPool = store, deduper, queue, pool
	s.started = true
	s.mu.Unlock()

	if err := s.startScheduler(ctx); err != nil {
		s.stopLocked(ctx)
		return err
	}

	s.logger.Info(ctx, "pipeline service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.String("store", s.storeDriver),
	)
	return nil
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.injectedStore != nil {
		return s.injectedStore, nil
	}
	switch s.storeDriver {
	case DriverMemory:
		return repository.NewMemoryStore(), nil
	case DriverSQLite:
		st, err := repository.NewSQLStore(ctx, s.sqlitePath, s.sqlOptions...)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.storeDriver)
	}
}

func (s *Service) closeStore(ctx context.Context, store repository.Store) {
	if store == nil || store == s.injectedStore {
		return
	}
	if err := store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}
}

// Stop drains the intake queue, stops the scheduler and closes the store.
// Calls made after Stop returns fail with ErrNotStarted.
func (s *Service) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.isStarted() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.stopLocked(ctx)
}

// stopLocked requires s.lifecycle to be held.
func (s *Service) stopLocked(ctx context.Context) {
	s.logger.Info(ctx, "stopping pipeline service...")

	s.mu.Lock()
	store, pool, scheduler := s.store, s.workerPool, s.scheduler
	s.started = false
	s.scheduler = nil
	s.mu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.closeStore(ctx, store)

	s.logger.Info(ctx, "pipeline service stopped")
}

// components returns the live store and queue, or ErrNotStarted.
func (s *Service) components() (repository.Store, intakequeue.Queue, dedupe.Deduper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, ErrNotStarted
	}
	return s.store, s.queue, s.deduper, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"storeDriver": s.storeDriver,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len(ctx)
	stats["dedupeEntries"] = s.deduper.Size()
	ws := s.workerPool.Stats()
	stats["processed"] = ws.Processed
	stats["failed"] = ws.Failed
	if counts, err := s.store.Counts(ctx); err == nil {
		stats["diagnostics"] = counts.Diagnostics
		stats["opportunities"] = counts.Opportunities
		stats["activities"] = counts.Activities
	} else {
		s.logger.Warn(ctx, "store counts unavailable", logger.Error(err))
	}
	return stats
}
