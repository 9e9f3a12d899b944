package campaign

import (
	"errors"
	"fmt"
)

// Configuration errors are fatal to a run and surface before any send
// attempt; they leave the campaign in failed.
var (
	ErrNoTemplate           = errors.New("campaign has no template attached")
	ErrNoRecipients         = errors.New("campaign has no sendable recipients")
	ErrTransportUnavailable = errors.New("transport is unavailable")
	ErrSendInProgress       = errors.New("a send is already running for this campaign")
)

// PersistError reports a commit failure distinctly from send failures:
// the in-memory result is still valid, the caller can retry persistence.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
