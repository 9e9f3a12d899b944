package send

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Run is the handle for one in-flight campaign send: cancellable, with
// a stream of progress snapshots and the final result once Done is
// closed. The owner drives it by chaining Publish into the run's
// OnProgress hook and calling Finish when the run goroutine ends.
type Run struct {
	ID         uuid.UUID
	CampaignID int64

	cancel context.CancelFunc
	done   chan struct{}

	// progress is best-effort: a slow reader drops snapshots rather
	// than stalling the sender. Latest always has the newest one.
	progress chan Progress

	mu     sync.Mutex
	latest Progress
	result Result
	err    error
}

func NewRun(campaignID int64, cancel context.CancelFunc) *Run {
	return &Run{
		ID:         uuid.New(),
		CampaignID: campaignID,
		cancel:     cancel,
		done:       make(chan struct{}),
		progress:   make(chan Progress, 16),
	}
}

// Cancel requests the run to stop at the next batch boundary. The
// in-flight batch is allowed to finish.
func (r *Run) Cancel() {
	r.cancel()
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Progress is the snapshot stream; it is closed when the run finishes.
func (r *Run) Progress() <-chan Progress {
	return r.progress
}

func (r *Run) Latest() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Result is valid once Done is closed.
func (r *Run) Result() (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Publish records a snapshot and offers it to the stream without
// blocking the send loop.
func (r *Run) Publish(p Progress) {
	r.mu.Lock()
	r.latest = p
	r.mu.Unlock()

	select {
	case r.progress <- p:
	default:
	}
}

// Finish seals the run. Must be called exactly once.
func (r *Run) Finish(res Result, err error) {
	r.mu.Lock()
	r.result = res
	r.err = err
	r.mu.Unlock()

	close(r.progress)
	close(r.done)
}
