package job

import (
	"errors"

	"github.com/farmaops/catalog-enricher/internal/model"
)

// ErrQueueFull is returned when the queue has no room for another job. The
// caller surfaces it to the submitter, who retries later.
var ErrQueueFull = errors.New("job queue full")

// Queue is a bounded in-memory job buffer. Enqueue never blocks; a full
// queue pushes back on the submitter instead of growing without limit.
type Queue struct {
	ch chan model.Job
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{ch: make(chan model.Job, capacity)}
}

func (q *Queue) Enqueue(j model.Job) error {
	select {
	case q.ch <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Jobs exposes the consumer side for the manager's workers.
func (q *Queue) Jobs() <-chan model.Job {
	return q.ch
}

// Backlog reports how many jobs are waiting.
func (q *Queue) Backlog() int {
	return len(q.ch)
}

// Close stops intake. Workers drain what is already buffered and exit.
func (q *Queue) Close() {
	close(q.ch)
}
