// Package transport holds the delivery mechanisms a campaign run can
// hand messages to: the interactive per-message composer, the external
// automation handoff with its per-message fallback, and a simulated
// in-process transport for tests and dry runs.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Mode selects the transport wired in at startup.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeAutomation  Mode = "automation"
	ModeSimulated   Mode = "simulated"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeInteractive, ModeAutomation, ModeSimulated:
		return Mode(raw), nil
	}
	return "", fmt.Errorf("unknown transport mode %q", raw)
}

// Dispatcher sends one message directly; the composer implements it and
// the automation transport uses it as its fallback path.
type Dispatcher interface {
	Dispatch(ctx context.Context, phone, body string) error
}

// ErrCancelledByUser is the per-message verdict when the interactive
// composer reports that the user dismissed the compose sheet. It counts
// as a failure, not an abort.
var ErrCancelledByUser = errors.New("cancelled by user")
