// Package reconcile merges externally sourced contact records into the
// local contact store: upsert by external identifier, never duplicate.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/model"
	"github.com/LeventeLantos/campaign-manager/internal/store"
)

// ExternalContact is one record from the device address book.
type ExternalContact struct {
	ExternalID string   `json:"externalId"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Phones     []string `json:"phones"`
	Emails     []string `json:"emails"`
}

// Tx is the slice of the store transaction the reconciler needs.
type Tx interface {
	ContactByExternalID(ctx context.Context, externalID string) (*model.Contact, error)
	InsertContact(ctx context.Context, c *model.Contact) (int64, error)
	UpdateContact(ctx context.Context, c *model.Contact) error
	Commit() error
	Rollback() error
}

// Store opens one transaction per import chunk; the commit is the
// durability checkpoint.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Result reports what one import did. Counts cover committed chunks
// only; a rolled-back chunk contributes nothing but its commit error.
type Result struct {
	Inserted     int      `json:"inserted"`
	Updated      int      `json:"updated"`
	Skipped      int      `json:"skipped"`
	CommitErrors []string `json:"commitErrors,omitempty"`
}

type Reconciler struct {
	store     Store
	chunkSize int
	log       *slog.Logger
}

const DefaultChunkSize = 100

func New(st Store, chunkSize int, log *slog.Logger) *Reconciler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: st, chunkSize: chunkSize, log: log}
}

// NewFromSQL wires the reconciler straight to the SQL store.
func NewFromSQL(s *store.Store, chunkSize int, log *slog.Logger) *Reconciler {
	return New(sqlStore{s}, chunkSize, log)
}

type sqlStore struct {
	s *store.Store
}

func (a sqlStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := a.s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Reconcile processes the batch in fixed-size chunks, committing each
// one. A failed mid-import commit is logged and the import keeps going;
// a failure on the final commit is returned. The import is best-effort,
// not all-or-nothing.
func (r *Reconciler) Reconcile(ctx context.Context, batch []ExternalContact) (Result, error) {
	var (
		res      Result
		finalErr error
	)

	totalChunks := (len(batch) + r.chunkSize - 1) / r.chunkSize
	for chunk := 0; chunk < totalChunks; chunk++ {
		start := chunk * r.chunkSize
		end := min(start+r.chunkSize, len(batch))

		inserted, updated, skipped, err := r.applyChunk(ctx, batch[start:end])
		if err != nil {
			res.CommitErrors = append(res.CommitErrors, fmt.Sprintf("chunk %d/%d: %v", chunk+1, totalChunks, err))
			r.log.Error("import chunk failed, continuing",
				"chunk", chunk+1,
				"chunks", totalChunks,
				"records", end-start,
				"err", err,
			)
			if chunk == totalChunks-1 {
				finalErr = fmt.Errorf("final import commit: %w", err)
			}
			continue
		}

		res.Inserted += inserted
		res.Updated += updated
		res.Skipped += skipped
	}

	r.log.Info("contact import finished",
		"records", len(batch),
		"inserted", res.Inserted,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"failed_chunks", len(res.CommitErrors),
	)
	return res, finalErr
}

// applyChunk upserts one chunk inside a single transaction. Returned
// counts are only valid when the commit succeeded.
func (r *Reconciler) applyChunk(ctx context.Context, recs []ExternalContact) (inserted, updated, skipped int, err error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range recs {
		phone := firstNonBlank(rec.Phones)
		if phone == "" {
			// Records without a usable phone are silently skipped.
			skipped++
			continue
		}
		email := firstNonBlank(rec.Emails)

		existing, lookupErr := r.lookup(ctx, tx, rec.ExternalID)
		if lookupErr != nil {
			return 0, 0, 0, lookupErr
		}

		if existing != nil {
			existing.FirstName = rec.FirstName
			existing.LastName = rec.LastName
			existing.Phone = phone
			existing.Email = email
			if err := tx.UpdateContact(ctx, existing); err != nil {
				return 0, 0, 0, err
			}
			updated++
			continue
		}

		c := &model.Contact{
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Phone:     phone,
			Email:     email,
			Imported:  true,
			CreatedAt: time.Now().UTC(),
		}
		if rec.ExternalID != "" {
			id := rec.ExternalID
			c.ExternalID = &id
		}
		if _, err := tx.InsertContact(ctx, c); err != nil {
			return 0, 0, 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, err
	}
	return inserted, updated, skipped, nil
}

func (r *Reconciler) lookup(ctx context.Context, tx Tx, externalID string) (*model.Contact, error) {
	if externalID == "" {
		return nil, nil
	}
	c, err := tx.ContactByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func firstNonBlank(vals []string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
