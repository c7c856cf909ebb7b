// Package jobs runs asynchronous batch work. Jobs are persisted rows
// claimed by a polling loop and executed on a bounded worker pool, so a
// restart loses no queued work and two instances never run the same job.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arashthr/lodekeep/internal/errors"
	"github.com/arashthr/lodekeep/internal/logging"
	"github.com/arashthr/lodekeep/internal/logging/loggercontext"
	"github.com/arashthr/lodekeep/internal/metrics"
	"github.com/arashthr/lodekeep/internal/models"
	"github.com/arashthr/lodekeep/internal/types"
	"github.com/lthibault/jitterbug/v2"
	"github.com/panjf2000/ants/v2"
)

// ProgressFunc lets a handler report progress mid run. Persistence errors
// are logged and swallowed; progress reporting never fails a job.
type ProgressFunc func(current, total int, currentItem string)

// Handler implements one job type.
type Handler interface {
	Type() string
	// Title produces the human readable job title shown in status responses.
	Title(parameters json.RawMessage) string
	// Validate rejects bad parameters at submit time, before a row exists.
	Validate(ctx context.Context, owner types.OwnerId, parameters json.RawMessage) error
	// Run executes the job and returns its result document. A returned
	// error fails the job with the error text as its message.
	Run(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error)
}

// Store is the slice of the job model the engine needs.
type Store interface {
	Create(ctx context.Context, owner types.OwnerId, jobType, title string, parameters json.RawMessage) (*models.Job, error)
	ClaimNext(ctx context.Context) (*models.Job, error)
	UpdateProgress(ctx context.Context, id types.JobId, current, total int, currentItem string) error
	MarkCompleted(ctx context.Context, id types.JobId, result json.RawMessage) error
	MarkFailed(ctx context.Context, id types.JobId, message string) error
}

type Engine struct {
	store        Store
	handlers     map[string]Handler
	pool         *ants.Pool
	pollInterval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewEngine(store Store, workers int, pollInterval time.Duration) (*Engine, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Engine{
		store:        store,
		handlers:     make(map[string]Handler),
		pool:         pool,
		pollInterval: pollInterval,
		stop:         make(chan struct{}),
	}, nil
}

func (e *Engine) Register(handler Handler) {
	e.handlers[handler.Type()] = handler
}

// Submit validates and enqueues a job. The job starts when a poller claims
// it, not here.
func (e *Engine) Submit(ctx context.Context, owner types.OwnerId, jobType string, parameters json.RawMessage) (*models.Job, error) {
	handler, ok := e.handlers[jobType]
	if !ok {
		return nil, errors.ErrUnknownJobType
	}
	if err := handler.Validate(ctx, owner, parameters); err != nil {
		return nil, err
	}
	return e.store.Create(ctx, owner, jobType, handler.Title(parameters), parameters)
}

// Start launches the polling loop. The ticker is jittered so several
// instances polling the same table drift apart instead of thundering.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := jitterbug.New(e.pollInterval, &jitterbug.Norm{Stdev: e.pollInterval / 10})
		defer ticker.Stop()
		for {
			select {
			case <-e.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.drain(ctx)
			}
		}
	}()
}

// Stop ends polling and waits for in-flight jobs to finish.
func (e *Engine) Stop() {
	close(e.stop)
	e.wg.Wait()
	e.pool.Release()
}

// drain claims and dispatches pending jobs until the queue is empty or the
// pool has no free worker.
func (e *Engine) drain(ctx context.Context) {
	for e.pool.Free() > 0 {
		job, err := e.store.ClaimNext(ctx)
		if err != nil {
			logging.Logger.Errorw("claiming job failed", "error", err)
			return
		}
		if job == nil {
			return
		}
		e.wg.Add(1)
		if err := e.pool.Submit(func() {
			defer e.wg.Done()
			e.execute(ctx, job)
		}); err != nil {
			e.wg.Done()
			logging.Logger.Errorw("dispatching job failed", "jobId", job.Id, "error", err)
			failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
			defer cancel()
			if err := e.store.MarkFailed(failCtx, job.Id, "no worker available"); err != nil {
				logging.Logger.Errorw("failing undispatched job", "jobId", job.Id, "error", err)
			}
			return
		}
	}
}

func (e *Engine) execute(ctx context.Context, job *models.Job) {
	logger := logging.Logger.With("jobId", job.Id, "jobType", job.JobType)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("job panicked", "panic", r)
			e.finish(ctx, job, nil, fmt.Errorf("internal error: %v", r))
		}
	}()

	handler, ok := e.handlers[job.JobType]
	if !ok {
		// A row written by a newer deployment with a type this instance
		// does not know. Fail it so it does not sit claimed forever.
		e.finish(ctx, job, nil, fmt.Errorf("no handler for job type %q", job.JobType))
		return
	}

	report := func(current, total int, currentItem string) {
		if err := e.store.UpdateProgress(ctx, job.Id, current, total, currentItem); err != nil {
			logger.Errorw("updating job progress", "error", err)
		}
	}

	logger.Infow("job started")
	result, err := handler.Run(loggercontext.WithLogger(ctx, logger), job, report)
	e.finish(ctx, job, result, err)
	metrics.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())
	logger.Infow("job finished", "duration", time.Since(start), "failed", err != nil)
}

// terminalWriteTimeout bounds the final status write. The write runs on a
// context detached from cancellation, so a job interrupted by shutdown is
// still recorded as failed instead of stranded in running.
const terminalWriteTimeout = 5 * time.Second

func (e *Engine) finish(ctx context.Context, job *models.Job, result json.RawMessage, runErr error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	if runErr != nil {
		metrics.JobsTotal.WithLabelValues(job.JobType, string(types.JobFailed)).Inc()
		if err := e.store.MarkFailed(writeCtx, job.Id, runErr.Error()); err != nil {
			logging.Logger.Errorw("marking job failed", "jobId", job.Id, "error", err)
		}
		return
	}
	metrics.JobsTotal.WithLabelValues(job.JobType, string(types.JobCompleted)).Inc()
	if err := e.store.MarkCompleted(writeCtx, job.Id, result); err != nil {
		logging.Logger.Errorw("marking job completed", "jobId", job.Id, "error", err)
	}
}
