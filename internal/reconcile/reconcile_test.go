package reconcile_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/LeventeLantos/campaign-manager/internal/model"
	"github.com/LeventeLantos/campaign-manager/internal/reconcile"
	"github.com/LeventeLantos/campaign-manager/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.OpenEphemeral()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReconcile_InsertsNewContacts(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	r := reconcile.NewFromSQL(s, 100, discard())

	res, err := r.Reconcile(context.Background(), []reconcile.ExternalContact{
		{ExternalID: "d-1", FirstName: "Anna", LastName: "Kovacs", Phones: []string{"+361"}, Emails: []string{"anna@example.com"}},
		{ExternalID: "d-2", FirstName: "Bela", Phones: []string{"", "+362"}},
	})
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if res.Inserted != 2 || res.Updated != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	got, err := s.ContactByExternalID(context.Background(), "d-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Imported {
		t.Fatalf("imported contact must carry the device flag")
	}
	if got.Email != "anna@example.com" {
		t.Fatalf("unexpected email %q", got.Email)
	}

	// Second phone in the list is used when the first is blank.
	got2, err := s.ContactByExternalID(context.Background(), "d-2")
	if err != nil {
		t.Fatal(err)
	}
	if got2.Phone != "+362" {
		t.Fatalf("expected first usable phone, got %q", got2.Phone)
	}
}

func TestReconcile_UpsertNeverDuplicates(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	r := reconcile.NewFromSQL(s, 100, discard())
	ctx := context.Background()

	batch := []reconcile.ExternalContact{
		{ExternalID: "d-1", FirstName: "Anna", Phones: []string{"+361"}},
	}
	if _, err := r.Reconcile(ctx, batch); err != nil {
		t.Fatal(err)
	}

	first, err := s.ContactByExternalID(ctx, "d-1")
	if err != nil {
		t.Fatal(err)
	}

	// Manual group membership must survive a re-import.
	g := &model.ContactGroup{Name: "friends"}
	if _, err := s.InsertGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	if err := s.AddContactToGroup(ctx, first.ID, g.ID); err != nil {
		t.Fatal(err)
	}

	batch[0].FirstName = "Anne"
	batch[0].Phones = []string{"+369"}
	res, err := r.Reconcile(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Updated != 1 {
		t.Fatalf("expected pure update, got %+v", res)
	}

	all, err := s.ListContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("repeated import must not duplicate, got %d contacts", len(all))
	}

	got, err := s.ContactByExternalID(ctx, "d-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID {
		t.Fatalf("identity changed on re-import: %d -> %d", first.ID, got.ID)
	}
	if got.FirstName != "Anne" || got.Phone != "+369" {
		t.Fatalf("mutable fields not overwritten: %+v", got)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("creation time must be preserved")
	}
	if len(got.GroupIDs) != 1 || got.GroupIDs[0] != g.ID {
		t.Fatalf("manual group membership lost: %v", got.GroupIDs)
	}
}

func TestReconcile_SkipsPhonelessSilently(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	r := reconcile.NewFromSQL(s, 100, discard())

	res, err := r.Reconcile(context.Background(), []reconcile.ExternalContact{
		{ExternalID: "d-1", FirstName: "NoPhone"},
		{ExternalID: "d-2", FirstName: "Blank", Phones: []string{"   "}},
		{ExternalID: "d-3", FirstName: "Ok", Phones: []string{"+361"}},
	})
	if err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	if res.Skipped != 2 || res.Inserted != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

// failingStore wraps the real store and fails the commit of the chunks
// listed in failChunks (1-based).
type failingStore struct {
	inner      reconcile.Store
	failChunks map[int]bool
	chunk      int
}

func (f *failingStore) Begin(ctx context.Context) (reconcile.Tx, error) {
	tx, err := f.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	f.chunk++
	return &failingTx{Tx: tx, fail: f.failChunks[f.chunk]}, nil
}

type failingTx struct {
	reconcile.Tx
	fail bool
}

func (f *failingTx) Commit() error {
	if f.fail {
		_ = f.Tx.Rollback()
		return fmt.Errorf("disk full")
	}
	return f.Tx.Commit()
}

func externalBatch(n int) []reconcile.ExternalContact {
	out := make([]reconcile.ExternalContact, n)
	for i := range out {
		out[i] = reconcile.ExternalContact{
			ExternalID: fmt.Sprintf("d-%03d", i),
			FirstName:  fmt.Sprintf("C%03d", i),
			Phones:     []string{fmt.Sprintf("+36%03d", i)},
		}
	}
	return out
}

func TestReconcile_FinalChunkCommitFailureIsSurfaced(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	fs := &failingStore{inner: sqlStoreOf(s), failChunks: map[int]bool{2: true}}
	r := reconcile.New(fs, 100, discard())

	// 150 records in chunks of 100: the second (final) chunk fails.
	res, err := r.Reconcile(context.Background(), externalBatch(150))
	if err == nil {
		t.Fatalf("expected the final commit failure to be surfaced")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("unexpected error %v", err)
	}

	if res.Inserted != 100 {
		t.Fatalf("expected the first 100 committed, got %d", res.Inserted)
	}
	if len(res.CommitErrors) != 1 {
		t.Fatalf("expected one commit error, got %v", res.CommitErrors)
	}

	all, err := s.ListContacts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 100 {
		t.Fatalf("expected exactly the committed chunk in the store, got %d", len(all))
	}
}

func TestReconcile_MidChunkFailureContinues(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	fs := &failingStore{inner: sqlStoreOf(s), failChunks: map[int]bool{2: true}}
	r := reconcile.New(fs, 50, discard())

	// Three chunks of 50; the middle one fails but the import finishes.
	res, err := r.Reconcile(context.Background(), externalBatch(150))
	if err != nil {
		t.Fatalf("mid-import commit failure must not fail the import: %v", err)
	}
	if res.Inserted != 100 {
		t.Fatalf("expected 100 committed across chunks 1 and 3, got %d", res.Inserted)
	}
	if len(res.CommitErrors) != 1 {
		t.Fatalf("expected the failed chunk on the error list, got %v", res.CommitErrors)
	}
}

// sqlStoreOf adapts a *store.Store the same way NewFromSQL does,
// so the failing wrapper can sit in between.
func sqlStoreOf(s *store.Store) reconcile.Store {
	return beginFunc(func(ctx context.Context) (reconcile.Tx, error) {
		tx, err := s.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return tx, nil
	})
}

type beginFunc func(ctx context.Context) (reconcile.Tx, error)

func (f beginFunc) Begin(ctx context.Context) (reconcile.Tx, error) {
	return f(ctx)
}
