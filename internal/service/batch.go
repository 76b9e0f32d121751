package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vivi-tora/mfc/internal/cache"
	"github.com/vivi-tora/mfc/internal/metrics"
	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/pkg/clock"
	"github.com/vivi-tora/mfc/internal/signer"
	"github.com/vivi-tora/mfc/pkg/uid"
)

var (
	// ErrBatchRunning is returned by Start while another batch is in progress.
	ErrBatchRunning = errors.New("a batch is already running")

	// ErrBatchNotFound is returned for unknown or expired batch IDs.
	ErrBatchNotFound = errors.New("batch not found")
)

// DefaultProgressTTL is how long a batch snapshot stays pollable.
const DefaultProgressTTL = 24 * time.Hour

// BatchConfig holds settings for BatchService.
type BatchConfig struct {
	Credentials signer.Credentials
	ProgressTTL time.Duration
}

// BatchService runs one submission batch at a time in the background and
// publishes its progress to a cache.
type BatchService struct {
	submitter *Submitter
	cache     cache.Cache
	creds     signer.Credentials
	ttl       time.Duration
	metrics   *metrics.Metrics
	clock     clock.Clock

	mu      sync.Mutex
	current *runningBatch
}

type runningBatch struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBatchService creates a batch runner. m may be nil.
func NewBatchService(submitter *Submitter, c cache.Cache, cfg BatchConfig, m *metrics.Metrics) *BatchService {
	if cfg.ProgressTTL <= 0 {
		cfg.ProgressTTL = DefaultProgressTTL
	}
	return &BatchService{
		submitter: submitter,
		cache:     c,
		creds:     cfg.Credentials,
		ttl:       cfg.ProgressTTL,
		metrics:   m,
		clock:     clock.RealClock{},
	}
}

func batchKey(id string) string {
	return "batch:" + id
}

// Start validates the configuration and launches items in the background.
// rowsSkipped is the number of input rows the caller filtered out before
// submission and is only reported back in the progress snapshot.
func (s *BatchService) Start(ctx context.Context, items []model.Item, rowsSkipped int) (*model.BatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrBatchRunning
	}
	if _, err := s.submitter.Preflight(ctx, s.creds); err != nil {
		return nil, err
	}

	progress := &model.BatchProgress{
		ID:          uid.New(),
		State:       model.BatchRunning,
		Total:       len(items),
		RowsSkipped: rowsSkipped,
		Outcomes:    []model.Outcome{},
		StartedAt:   s.clock.Now(),
	}
	if err := s.save(ctx, progress); err != nil {
		return nil, fmt.Errorf("save batch progress: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &runningBatch{id: progress.ID, cancel: cancel, done: make(chan struct{})}
	s.current = run

	snapshot := *progress
	go s.run(runCtx, run, items, progress)

	log.Printf("[BatchService] Started batch %s with %d items (%d rows skipped)", progress.ID, len(items), rowsSkipped)
	return &snapshot, nil
}

func (s *BatchService) run(ctx context.Context, run *runningBatch, items []model.Item, progress *model.BatchProgress) {
	defer func() {
		run.cancel()
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		close(run.done)
	}()

	obs := Observer{
		OnProgress: func(p model.Progress) {
			progress.Current = p.Index + 1
			progress.CurrentCode = p.Code
			s.publish(progress)
		},
		OnOutcome: func(o model.Outcome) {
			progress.Outcomes = append(progress.Outcomes, o)
			if o.Succeeded() {
				progress.Succeeded++
			} else {
				progress.Failed++
			}
			s.publish(progress)
		},
	}

	result, err := s.submitter.Submit(ctx, items, s.creds, obs)
	switch {
	case err != nil:
		progress.State = model.BatchFailed
		progress.Error = err.Error()
	case len(result.Skipped) > 0:
		progress.State = model.BatchCancelled
		progress.Skipped = result.Skipped
	default:
		progress.State = model.BatchCompleted
	}
	progress.CurrentCode = ""
	finished := s.clock.Now()
	progress.FinishedAt = &finished
	s.publish(progress)
	s.metrics.ObserveBatch(progress.State)

	log.Printf("[BatchService] Batch %s %s: %d succeeded, %d failed, %d skipped",
		progress.ID, progress.State, progress.Succeeded, progress.Failed, len(progress.Skipped))
}

func (s *BatchService) publish(progress *model.BatchProgress) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.save(ctx, progress); err != nil {
		log.Printf("[BatchService] Failed to save progress for %s: %v", progress.ID, err)
	}
}

func (s *BatchService) save(ctx context.Context, progress *model.BatchProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, batchKey(progress.ID), data, s.ttl)
}

// Get returns the latest snapshot of a batch.
func (s *BatchService) Get(ctx context.Context, id string) (*model.BatchProgress, error) {
	data, err := s.cache.Get(ctx, batchKey(id))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load batch %s: %w", id, err)
	}

	var progress model.BatchProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", id, err)
	}
	return &progress, nil
}

// Cancel asks a running batch to stop before its next item. Cancelling a
// batch that already finished is a no-op.
func (s *BatchService) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()

	if run != nil && run.id == id {
		run.cancel()
		log.Printf("[BatchService] Cancellation requested for batch %s", id)
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return nil
}

// Running returns the ID of the batch in progress, if any.
func (s *BatchService) Running() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return s.current.id, true
}

// Wait blocks until the running batch finishes or ctx is done.
func (s *BatchService) Wait(ctx context.Context) error {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()
	if run == nil {
		return nil
	}

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels the running batch and waits for its in-flight item.
func (s *BatchService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()
	if run != nil {
		run.cancel()
	}
	return s.Wait(ctx)
}
