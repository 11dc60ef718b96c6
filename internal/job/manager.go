package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farmaops/catalog-enricher/internal/model"
	"github.com/farmaops/catalog-enricher/internal/obs"
)

// Options configures the manager's concurrency and retry policy.
type Options struct {
	// Workers is the number of concurrent job consumers. Defaults to 1.
	Workers int

	// MaxAttempts caps attempts per job, first run included. Defaults to 3.
	MaxAttempts int

	// Backoff is the fixed delay between a failed attempt and the next one.
	Backoff time.Duration
}

// Runner executes a single job attempt.
type Runner interface {
	Run(ctx context.Context, j model.Job) error
}

// Manager consumes the queue with a fixed worker pool and drives each job
// through its attempt loop. Jobs that exhaust their attempts are retained
// for operator inspection.
type Manager struct {
	queue  *Queue
	runner Runner
	opts   Options
	log    *slog.Logger

	mu        sync.Mutex
	failed    []model.Job
	customers map[string]*sync.Mutex

	wg sync.WaitGroup
}

func NewManager(q *Queue, runner Runner, opts Options, log *slog.Logger) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if log == nil {
		log = obs.Logger
	}
	return &Manager{
		queue:     q,
		runner:    runner,
		opts:      opts,
		log:       log,
		customers: make(map[string]*sync.Mutex),
	}
}

// Submit assigns the job an identity and retry budget and places it on the
// queue in the queued state.
func (m *Manager) Submit(j model.Job) (model.Job, error) {
	j.ID = uuid.NewString()
	j.State = model.JobQueued
	j.Attempt = 0
	j.MaxAttempts = m.opts.MaxAttempts
	j.Backoff = m.opts.Backoff
	j.SubmittedAt = time.Now().UTC()

	if err := m.queue.Enqueue(j); err != nil {
		return model.Job{}, err
	}
	m.log.Info("job queued",
		"job_id", j.ID, "customer_id", j.CustomerID, "file", j.FileName,
		"backlog", m.queue.Backlog())
	return j, nil
}

// Start launches the worker pool. Workers exit when the queue closes or the
// context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.opts.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-m.queue.Jobs():
					if !ok {
						return
					}
					// A customer's rows have a single writer at a time;
					// jobs for different customers run concurrently.
					lock := m.lockCustomer(j.CustomerID)
					lock.Lock()
					m.process(ctx, j)
					lock.Unlock()
				}
			}
		}()
	}
}

// Stop closes intake and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	m.queue.Close()
	m.wg.Wait()
}

// process runs the attempt loop for one job. An attempt failing with a
// RetryableError is retried after the backoff until the budget runs out;
// any other failure is terminal immediately.
func (m *Manager) process(ctx context.Context, j model.Job) {
	for {
		j.Attempt++
		j.State = model.JobRunning

		err := m.runner.Run(ctx, j)
		if err == nil {
			j.State = model.JobSucceeded
			j.LastError = ""
			m.log.Info("job succeeded",
				"job_id", j.ID, "customer_id", j.CustomerID, "file", j.FileName,
				"attempt", j.Attempt)
			return
		}

		j.LastError = err.Error()
		if !IsRetryable(err) || j.Attempt >= j.MaxAttempts {
			j.State = model.JobFailedTerminal
			m.retainFailed(j)
			m.log.Error("job failed terminally",
				"job_id", j.ID, "customer_id", j.CustomerID, "file", j.FileName,
				"attempt", j.Attempt, "error", err)
			return
		}

		j.State = model.JobFailedRetryable
		m.log.Warn("job attempt failed, will retry",
			"job_id", j.ID, "customer_id", j.CustomerID, "file", j.FileName,
			"attempt", j.Attempt, "backoff", j.Backoff)

		select {
		case <-ctx.Done():
			j.State = model.JobFailedTerminal
			j.LastError = ctx.Err().Error()
			m.retainFailed(j)
			return
		case <-time.After(j.Backoff):
		}
	}
}

// lockCustomer returns the mutex serializing jobs for one customer. The map
// is never pruned; it is bounded by the number of distinct customers.
func (m *Manager) lockCustomer(customerID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.customers[customerID]
	if !ok {
		lock = &sync.Mutex{}
		m.customers[customerID] = lock
	}
	return lock
}

func (m *Manager) retainFailed(j model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, j)
}

// FailedJobs returns a snapshot of jobs that exhausted their attempts.
func (m *Manager) FailedJobs() []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Job, len(m.failed))
	copy(out, m.failed)
	return out
}
