package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/copyleftdev/roots/internal/errors"
	"github.com/copyleftdev/roots/internal/problem"
	"github.com/copyleftdev/roots/internal/roots"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

func terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// JobState tracks one asynchronous solve. Fields are guarded by the
// manager's mutex; callers only ever see copies.
type JobState struct {
	ID          string
	Status      string
	Spec        problem.Spec
	Result      *roots.Result
	Err         error
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	cancel context.CancelFunc
}

// SolveFunc runs a single problem. The manager calls it from worker
// goroutines.
type SolveFunc func(ctx context.Context, spec problem.Spec) (*roots.Result, error)

// JobManager runs solves in the background, at most workers at a time,
// and forgets finished jobs after the retention period.
type JobManager struct {
	solve     SolveFunc
	slots     chan struct{}
	retention time.Duration
	now       func() time.Time
	onStart   func()
	onFinish  func()

	mu   sync.RWMutex
	jobs map[string]*JobState
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewJobManager returns a manager running at most workers solves
// concurrently.
func NewJobManager(solve SolveFunc, workers int, retention time.Duration) *JobManager {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		solve:     solve,
		slots:     make(chan struct{}, workers),
		retention: retention,
		now:       time.Now,
		onStart:   func() {},
		onFinish:  func() {},
		jobs:      make(map[string]*JobState),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start validates spec and queues it. The returned copy is in the pending
// state.
func (m *JobManager) Start(spec problem.Spec) (JobState, error) {
	if err := spec.Validate(); err != nil {
		return JobState{}, err
	}

	m.prune()

	// The closed check and wg.Add share the lock Close takes before
	// cancelling, so no worker is added once Close is waiting.
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return JobState{}, apierrors.Wrap(apierrors.ErrUnavailable, "job manager is closed").WithOperation("Start")
	}

	ctx, cancel := context.WithCancel(m.ctx)
	now := m.now()
	job := &JobState{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		Spec:        spec,
		StartTime:   now,
		LastUpdated: now,
		cancel:      cancel,
	}
	m.jobs[job.ID] = job
	snapshot := *job
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(ctx, job)

	return snapshot, nil
}

func (m *JobManager) run(ctx context.Context, job *JobState) {
	defer m.wg.Done()
	defer job.cancel()

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		m.finish(job, nil, ctx.Err())
		return
	}
	defer func() { <-m.slots }()

	if !m.transition(job, StatusRunning) {
		return
	}
	m.onStart()
	defer m.onFinish()

	result, err := m.solve(ctx, job.Spec)
	m.finish(job, result, err)
}

// transition moves a pending job to status unless it was cancelled.
func (m *JobManager) transition(job *JobState, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if terminal(job.Status) {
		return false
	}
	job.Status = status
	job.LastUpdated = m.now()
	return true
}

func (m *JobManager) finish(job *JobState, result *roots.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Result = result
	now := m.now()
	job.LastUpdated = now
	if job.Status == StatusCancelled {
		// Cancel already recorded the end time.
		return
	}

	job.Err = err
	job.EndTime = &now
	switch {
	case err == nil:
		job.Status = StatusCompleted
	case isContextErr(err):
		job.Status = StatusCancelled
	default:
		job.Status = StatusFailed
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Get returns a copy of the job with the given id.
func (m *JobManager) Get(id string) (JobState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return JobState{}, apierrors.Wrapf(apierrors.ErrNotFound, "job %q", id).WithOperation("Get")
	}
	return *job, nil
}

// Cancel stops a pending or running job.
func (m *JobManager) Cancel(id string) (JobState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return JobState{}, apierrors.Wrapf(apierrors.ErrNotFound, "job %q", id).WithOperation("Cancel")
	}
	if terminal(job.Status) {
		return *job, apierrors.Wrapf(apierrors.ErrConflict, "cannot cancel job with status %s", job.Status).WithOperation("Cancel")
	}

	job.cancel()
	now := m.now()
	job.Status = StatusCancelled
	job.Err = context.Canceled
	job.EndTime = &now
	job.LastUpdated = now
	return *job, nil
}

// List returns copies of all retained jobs, oldest first.
func (m *JobManager) List() []JobState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]JobState, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartTime.Before(jobs[j].StartTime) })
	return jobs
}

// prune drops finished jobs older than the retention period.
func (m *JobManager) prune() int {
	if m.retention <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for id, job := range m.jobs {
		if terminal(job.Status) && job.EndTime != nil && job.EndTime.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n
}

// Close cancels every job and waits for the workers to return.
func (m *JobManager) Close() error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (j JobState) String() string {
	return fmt.Sprintf("job %s (%s)", j.ID, j.Status)
}
