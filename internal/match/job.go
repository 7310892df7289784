package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/kindred/internal/entity"
)

// SubjectSource enumerates subjects whose cached scores should be refreshed.
type SubjectSource interface {
	// PendingSubjects returns the IDs to refresh this cycle.
	PendingSubjects(ctx context.Context) ([]string, error)
}

// PendingTracker is an in-memory SubjectSource fed by onboarding or profile
// update events. Marking is idempotent; a drain returns each subject once.
type PendingTracker struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

// NewPendingTracker creates an empty tracker.
func NewPendingTracker() *PendingTracker {
	return &PendingTracker{pending: make(map[string]struct{})}
}

// Mark queues a subject for refresh on the next cycle.
func (t *PendingTracker) Mark(subjectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[subjectID] = struct{}{}
}

// PendingSubjects drains and returns the queued subject IDs.
func (t *PendingTracker) PendingSubjects(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.pending))
	for id := range t.pending {
		out = append(out, id)
	}
	t.pending = make(map[string]struct{})
	return out, nil
}

// Default refresh job settings.
const (
	DefaultRefreshInterval = 15 * time.Minute
	DefaultRefreshTimeout  = 5 * time.Minute
)

// RefreshJobConfig configures the periodic cache refresh job.
type RefreshJobConfig struct {
	// Interval is the duration between refresh cycles.
	Interval time.Duration
	// Timeout bounds each refresh cycle.
	Timeout time.Duration
	// Logger for job activity.
	Logger *slog.Logger
}

// RefreshJob periodically recomputes cached compatibility scores for pending
// subjects. Overlapping runs against the same subject are harmless: the
// idempotent-skip write policy resolves them without locking.
type RefreshJob struct {
	config  RefreshJobConfig
	engine  *Engine
	source  SubjectSource
	metrics *Metrics

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRefreshJob creates a new cache refresh job.
func NewRefreshJob(config RefreshJobConfig, engine *Engine, source SubjectSource) *RefreshJob {
	if config.Interval == 0 {
		config.Interval = DefaultRefreshInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRefreshTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RefreshJob{
		config:  config,
		engine:  engine,
		source:  source,
		metrics: engine.metrics,
	}
}

// Start begins the periodic refresh job.
// Returns immediately; the job runs in a background goroutine.
func (j *RefreshJob) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
}

// Stop signals the refresh job to stop and waits for it to finish.
func (j *RefreshJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.running = false
	j.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// run is the job loop. Exits on Stop or context cancellation.
func (j *RefreshJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle executes one refresh cycle: drain pending subjects and refresh
// both candidate kinds for each. Per-subject failures are logged and counted
// but do not abort the cycle.
func (j *RefreshJob) RunCycle(ctx context.Context) {
	start := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	subjects, err := j.source.PendingSubjects(cycleCtx)
	if err != nil {
		j.config.Logger.Error("failed to list pending subjects", "error", err)
		j.metrics.ObserveRefresh(StatusFailure, time.Since(start).Seconds(), 0)
		return
	}
	if len(subjects) == 0 {
		return
	}

	failures := 0
	for _, subjectID := range subjects {
		for _, kind := range []entity.Kind{entity.KindPerson, entity.KindGroup} {
			if err := j.engine.RefreshCache(cycleCtx, subjectID, kind); err != nil {
				failures++
				j.config.Logger.Error("refresh failed",
					"subject_id", subjectID,
					"kind", string(kind),
					"error", err,
				)
			}
		}
	}

	status := StatusSuccess
	if failures > 0 {
		status = StatusFailure
	}
	j.metrics.ObserveRefresh(status, time.Since(start).Seconds(), float64(time.Now().Unix()))

	j.config.Logger.Info("refresh cycle complete",
		"subjects", len(subjects),
		"failures", failures,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
