package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
)

func TestStore_SetGetQuery(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	ref := s.Ref("incomes", "")
	if ref.ID == "" {
		t.Fatal("expected generated id")
	}

	b := s.NewBatch()
	b.Set(ref, map[string]any{"periodId": "p1", "description": "salary"})
	b.Set(s.Ref("incomes", "other"), map[string]any{"periodId": "p2"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	doc, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !doc.Exists {
		t.Fatal("expected document to exist")
	}
	if doc.Data["description"] != "salary" {
		t.Errorf("expected description 'salary', got %v", doc.Data["description"])
	}

	docs, err := s.QueryByEquality(ctx, "incomes", "periodId", "p1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != ref.ID {
		t.Errorf("expected only %s, got %+v", ref.ID, docs)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := memstore.New()

	doc, err := s.Get(context.Background(), port.DocRef{Collection: "periods", ID: "nope"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if doc.Exists {
		t.Fatal("expected missing document")
	}
}

func TestStore_ReadsDoNotAliasStoredData(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	ref := s.Ref("periods", "p1")

	data := map[string]any{"name": "August"}
	b := s.NewBatch()
	b.Set(ref, data)
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	data["name"] = "changed after commit"

	doc, _ := s.Get(ctx, ref)
	doc.Data["name"] = "changed after read"

	again, _ := s.Get(ctx, ref)
	if again.Data["name"] != "August" {
		t.Errorf("expected stored name 'August', got %v", again.Data["name"])
	}
}

func TestBatch_CommitTwice(t *testing.T) {
	s := memstore.New()
	b := s.NewBatch()
	b.Delete(s.Ref("periods", "p1"))

	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := b.Commit(context.Background()); !errors.Is(err, port.ErrBatchCommitted) {
		t.Fatalf("expected ErrBatchCommitted, got %v", err)
	}
}

func TestBatch_FailedCommitAppliesNothing(t *testing.T) {
	s := memstore.New()
	seed := s.NewBatch()
	seed.Set(s.Ref("periods", "p1"), map[string]any{"name": "August"})
	if err := seed.Commit(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b := s.NewBatch()
	b.Delete(s.Ref("periods", "p1"))
	b.Set(s.Ref("periods", "p2"), map[string]any{"bad": make(chan int)})
	if err := b.Commit(context.Background()); err == nil {
		t.Fatal("expected encode error")
	}

	if s.Count("periods") != 1 {
		t.Fatalf("expected 1 period after failed commit, got %d", s.Count("periods"))
	}
	doc, _ := s.Get(context.Background(), s.Ref("periods", "p1"))
	if !doc.Exists {
		t.Fatal("expected p1 to survive the failed batch")
	}
}

func TestBatch_CancelledContext(t *testing.T) {
	s := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := s.NewBatch()
	b.Set(s.Ref("periods", "p1"), map[string]any{"name": "August"})
	if err := b.Commit(ctx); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if s.Count("periods") != 0 {
		t.Fatal("expected nothing written")
	}
}

func TestBatch_DeleteMissingIsNoop(t *testing.T) {
	s := memstore.New()
	b := s.NewBatch()
	b.Delete(s.Ref("periods", "ghost"))
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
