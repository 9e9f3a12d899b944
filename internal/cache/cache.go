package cache

import (
	"context"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/send"
)

// ProgressCache keeps the latest progress snapshot per campaign and a
// receipt per delivered message, so the API can answer progress queries
// without hitting the store on every poll.
type ProgressCache interface {
	StoreProgress(ctx context.Context, campaignID int64, p send.Progress) error
	Progress(ctx context.Context, campaignID int64) (send.Progress, bool, error)
	StoreSent(ctx context.Context, messageID int64, sentAt time.Time) error
}

// Noop is the implementation used when Redis is disabled.
type Noop struct{}

func (Noop) StoreProgress(ctx context.Context, campaignID int64, p send.Progress) error {
	return nil
}

func (Noop) Progress(ctx context.Context, campaignID int64) (send.Progress, bool, error) {
	return send.Progress{}, false, nil
}

func (Noop) StoreSent(ctx context.Context, messageID int64, sentAt time.Time) error {
	return nil
}
