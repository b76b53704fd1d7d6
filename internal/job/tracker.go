package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asr-api/backend/internal/db/models"
	"github.com/asr-api/backend/internal/events"
	"github.com/asr-api/backend/internal/pipeline"
)

var (
	ErrNotFound  = errors.New("job not found")
	ErrNotActive = errors.New("job already finished")
)

const defaultKeep = 500

// Recorder persists finished requests
type Recorder interface {
	RecordRequest(rec models.RequestRecord) error
}

// RunFunc performs the transcription for a job
type RunFunc func(ctx context.Context) (*pipeline.Outcome, error)

// Tracker bounds how many transcriptions run at once and keeps the state
// of recent ones for listing and cancellation
type Tracker struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	cancels   map[string]context.CancelFunc
	cancelled map[string]bool
	slots     chan struct{}
	waiting   int
	keep      int
	publisher events.Publisher
	recorder  Recorder
	ctx       context.Context
	stop      context.CancelFunc
}

// NewTracker creates a tracker with maxConcurrent slots. publisher and
// recorder may be nil.
func NewTracker(maxConcurrent int, publisher events.Publisher, recorder Recorder) *Tracker {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Tracker{
		jobs:      make(map[string]*Job),
		cancels:   make(map[string]context.CancelFunc),
		cancelled: make(map[string]bool),
		slots:     make(chan struct{}, maxConcurrent),
		keep:      defaultKeep,
		publisher: publisher,
		recorder:  recorder,
		ctx:       ctx,
		stop:      stop,
	}
}

// Run registers a job, waits for a free slot, and calls fn. The job is
// cancelled when ctx ends, when Cancel is called, or when the tracker stops.
func (t *Tracker) Run(ctx context.Context, meta Meta, fn RunFunc) (Job, *pipeline.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(t.ctx, cancel)
	defer stopWatch()

	job := &Job{
		ID:        uuid.New().String(),
		Meta:      meta,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	t.mu.Lock()
	t.jobs[job.ID] = job
	t.cancels[job.ID] = cancel
	t.waiting++
	t.mu.Unlock()

	acquired := false
	select {
	case t.slots <- struct{}{}:
		acquired = true
	case <-ctx.Done():
	}
	t.mu.Lock()
	t.waiting--
	t.mu.Unlock()

	if !acquired {
		err := fmt.Errorf("waiting for a free slot: %w", ctx.Err())
		return t.finish(ctx, job.ID, nil, err), nil, err
	}
	defer func() { <-t.slots }()

	now := time.Now()
	t.mu.Lock()
	job.Status = StatusRunning
	job.StartedAt = &now
	t.mu.Unlock()
	t.publish(ctx, events.TypeStarted, t.snapshot(job.ID), nil)

	out, err := fn(ctx)
	return t.finish(ctx, job.ID, out, err), out, err
}

func (t *Tracker) finish(ctx context.Context, id string, out *pipeline.Outcome, runErr error) Job {
	now := time.Now()
	t.mu.Lock()
	job := t.jobs[id]
	job.CompletedAt = &now
	switch {
	case runErr == nil:
		job.Status = StatusCompleted
		if out != nil {
			job.Degraded = out.Degraded
			job.Duration = out.Result.Duration
			job.Segments = len(out.Segments)
		}
	case t.cancelled[id]:
		job.Status = StatusCancelled
		job.Error = runErr.Error()
	default:
		job.Status = StatusFailed
		job.Error = runErr.Error()
	}
	delete(t.cancels, id)
	delete(t.cancelled, id)
	snap := *job
	t.pruneLocked()
	t.mu.Unlock()

	switch snap.Status {
	case StatusCompleted:
		log.Printf("[job] %s completed: audio=%.2fs segments=%d degraded=%v", id, snap.Duration, snap.Segments, snap.Degraded)
		t.publish(ctx, events.TypeCompleted, snap, out)
	case StatusCancelled:
		log.Printf("[job] %s cancelled", id)
		t.publish(ctx, events.TypeCancelled, snap, nil)
	default:
		log.Printf("[job] %s failed: %s", id, snap.Error)
		t.publish(ctx, events.TypeFailed, snap, nil)
	}
	t.record(snap, out)
	return snap
}

func (t *Tracker) publish(ctx context.Context, typ events.Type, j Job, out *pipeline.Outcome) {
	e := events.Event{
		Type:        typ,
		RequestID:   j.ID,
		Source:      j.Source,
		Format:      j.Format,
		Language:    j.Language,
		Diarization: j.Diarization,
		Degraded:    j.Degraded,
		Duration:    j.Duration,
		Error:       j.Error,
		Time:        time.Now().UTC(),
	}
	if out != nil {
		e.Elapsed = out.Elapsed.Seconds()
		e.Speakers = out.Result.Speakers
	}
	// the request context may already be cancelled; the event should still go out
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := t.publisher.Publish(pctx, e); err != nil {
		log.Printf("[job] failed to publish %s event for %s: %v", typ, j.ID, err)
	}
}

func (t *Tracker) record(j Job, out *pipeline.Outcome) {
	if t.recorder == nil {
		return
	}
	rec := models.RequestRecord{
		RequestID:   j.ID,
		Source:      j.Source,
		Format:      j.Format,
		Language:    j.Language,
		Diarization: j.Diarization,
		Degraded:    j.Degraded,
		Duration:    j.Duration,
		Segments:    j.Segments,
		Status:      string(j.Status),
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: *j.CompletedAt,
	}
	if out != nil {
		rec.Elapsed = out.Elapsed.Seconds()
	}
	if err := t.recorder.RecordRequest(rec); err != nil {
		log.Printf("[job] failed to record %s: %v", j.ID, err)
	}
}

// pruneLocked drops the oldest finished jobs beyond the keep limit
func (t *Tracker) pruneLocked() {
	if len(t.jobs) <= t.keep {
		return
	}
	finished := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		if j.Status.Finished() {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(a, b int) bool {
		return finished[a].CreatedAt.Before(finished[b].CreatedAt)
	})
	for _, j := range finished {
		if len(t.jobs) <= t.keep {
			break
		}
		delete(t.jobs, j.ID)
	}
}

func (t *Tracker) snapshot(id string) Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.jobs[id]
}

// Get returns a job by ID
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

// List returns all tracked jobs, newest first
func (t *Tracker) List() []Job {
	t.mu.RLock()
	out := make([]Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, *j)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// Cancel aborts a pending or running job
func (t *Tracker) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return ErrNotFound
	}
	cancel, ok := t.cancels[id]
	if !ok || j.Status.Finished() {
		return ErrNotActive
	}
	t.cancelled[id] = true
	cancel()
	return nil
}

func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{Capacity: cap(t.slots), Running: len(t.slots), Waiting: t.waiting}
}

// Stop cancels every in-flight job
func (t *Tracker) Stop() {
	t.stop()
}
