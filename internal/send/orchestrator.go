// Package send is the pacing engine: it partitions a recipient list
// into batches, hands each batch to the transport, waits the configured
// delay between batches and accumulates progress and errors.
package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// OutboundMessage is one rendered body addressed to one phone number.
type OutboundMessage struct {
	Phone string
	Body  string
}

// Transport delivers one batch and reports a per-message verdict: the
// returned slice has one entry per input message, nil meaning sent.
type Transport interface {
	Available() bool
	DeliverBatch(ctx context.Context, msgs []OutboundMessage) []error
}

var (
	ErrNoMessages           = errors.New("send: no messages to deliver")
	ErrTransportUnavailable = errors.New("send: transport unavailable")
)

// Progress is the snapshot emitted after every batch. Counts are
// cumulative and non-decreasing across snapshots of one run.
type Progress struct {
	Total        int      `json:"total"`
	Sent         int      `json:"sent"`
	Failed       int      `json:"failed"`
	Batch        int      `json:"batch"`
	TotalBatches int      `json:"totalBatches"`
	Done         bool     `json:"done"`
	Errors       []string `json:"errors,omitempty"`
}

// Result is the aggregate outcome of one run.
type Result struct {
	Sent        int
	Failed      int
	Errors      []string
	Cancelled   bool
	CompletedAt time.Time
}

type Options struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Hooks let the caller observe a run without the orchestrator knowing
// about persistence. OnOutcome fires per message in dispatch order,
// OnProgress after every batch and once more with Done set.
type Hooks struct {
	OnOutcome  func(index int, err error)
	OnProgress func(p Progress)
}

type Orchestrator struct {
	transport Transport
	opts      Options
	log       *slog.Logger
}

func NewOrchestrator(t Transport, opts Options, log *slog.Logger) (*Orchestrator, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.New("batch size must be > 0")
	}
	if opts.BatchDelay < 0 {
		return nil, errors.New("batch delay must be >= 0")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{transport: t, opts: opts, log: log}, nil
}

// TotalBatches reports how many batches n messages need at the
// configured batch size.
func (o *Orchestrator) TotalBatches(n int) int {
	return (n + o.opts.BatchSize - 1) / o.opts.BatchSize
}

// Run processes msgs in contiguous batches, strictly in order, with the
// pacing delay between batches (not before the first, not after the
// last). A per-message transport failure is recorded and the run keeps
// going; cancellation is observed at batch boundaries, letting the
// in-flight batch finish. Preconditions are checked before any batch is
// attempted.
func (o *Orchestrator) Run(ctx context.Context, msgs []OutboundMessage, hooks Hooks) (Result, error) {
	if !o.transport.Available() {
		return Result{}, ErrTransportUnavailable
	}
	if len(msgs) == 0 {
		return Result{}, ErrNoMessages
	}

	total := len(msgs)
	batchSize := o.opts.BatchSize
	totalBatches := o.TotalBatches(total)

	o.log.Info("send run started",
		"messages", total,
		"batches", totalBatches,
		"batch_size", batchSize,
		"batch_delay", o.opts.BatchDelay.String(),
	)

	var (
		sent      int
		failed    int
		errs      []string
		cancelled bool
	)

	for batch := 0; batch < totalBatches; batch++ {
		start := batch * batchSize
		end := min(start+batchSize, total)
		chunk := msgs[start:end]

		// The in-flight batch always finishes: a cancel arriving while
		// the batch is dispatching must not abort its messages or show
		// up as transport failures.
		verdicts := o.transport.DeliverBatch(context.WithoutCancel(ctx), chunk)
		for i, m := range chunk {
			var verdict error
			if i < len(verdicts) {
				verdict = verdicts[i]
			}
			if verdict != nil {
				failed++
				errs = append(errs, fmt.Sprintf("message to %s failed: %v", m.Phone, verdict))
			} else {
				sent++
			}
			if hooks.OnOutcome != nil {
				hooks.OnOutcome(start+i, verdict)
			}
		}

		// Batch boundary: a cancel that landed during the dispatch is
		// honored here, after the batch finished.
		last := batch == totalBatches-1
		if !last && ctx.Err() != nil {
			cancelled = true
		}
		o.emit(hooks, Progress{
			Total:        total,
			Sent:         sent,
			Failed:       failed,
			Batch:        batch + 1,
			TotalBatches: totalBatches,
			Done:         last || cancelled,
			Errors:       append([]string(nil), errs...),
		})
		if last {
			break
		}
		if cancelled {
			o.log.Info("send run cancelled", "after_batch", batch+1, "sent", sent, "failed", failed)
			break
		}

		if err := o.pause(ctx); err != nil {
			cancelled = true
			o.log.Info("send run cancelled", "after_batch", batch+1, "sent", sent, "failed", failed)
			o.emit(hooks, Progress{
				Total:        total,
				Sent:         sent,
				Failed:       failed,
				Batch:        batch + 1,
				TotalBatches: totalBatches,
				Done:         true,
				Errors:       append([]string(nil), errs...),
			})
			break
		}
	}

	res := Result{
		Sent:        sent,
		Failed:      failed,
		Errors:      errs,
		Cancelled:   cancelled,
		CompletedAt: time.Now().UTC(),
	}
	o.log.Info("send run finished", "sent", res.Sent, "failed", res.Failed, "cancelled", res.Cancelled)
	return res, nil
}

func (o *Orchestrator) emit(hooks Hooks, p Progress) {
	if hooks.OnProgress != nil {
		hooks.OnProgress(p)
	}
}

// pause waits the inter-batch delay, returning early if the run is
// cancelled during the wait.
func (o *Orchestrator) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.opts.BatchDelay == 0 {
		return nil
	}

	timer := time.NewTimer(o.opts.BatchDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
