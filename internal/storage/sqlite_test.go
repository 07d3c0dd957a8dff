package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pdfsearch/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.StoredDocument{
		ID:           "doc1",
		Filename:     "doc1_report.pdf",
		OriginalName: "report.pdf",
		Title:        "Q1 Report",
		Description:  "",
		Category:     models.DefaultCategory,
		DownloadURL:  "http://localhost:5000/api/download/doc1_report.pdf",
		SizeBytes:    1234,
		TicketID:     "t1",
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Q1 Report" || got.Filename != "doc1_report.pdf" || got.SizeBytes != 1234 || got.TicketID != "t1" {
		t.Errorf("got %+v", got)
	}

	if err := store.CreateDocument(ctx, &models.StoredDocument{ID: "doc2", Filename: "doc1_report.pdf"}); err == nil {
		t.Error("duplicate filename should be rejected")
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	n, err := store.CountDocuments(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountDocuments: %v, %d", err, n)
	}

	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_Tickets(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	ticket := &models.DispatchTicket{
		ID:         "t1",
		DocumentID: "doc1",
		IndexName:  "documents",
		Mode:       models.DispatchAsync,
		Status:     models.TicketPending,
	}
	if err := store.CreateTicket(ctx, ticket); err != nil {
		t.Fatal(err)
	}

	ticket.Status = models.TicketRetrying
	ticket.Attempts = 1
	ticket.LastError = "engine unavailable"
	if err := store.UpdateTicket(ctx, ticket); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetTicket(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TicketRetrying || got.Attempts != 1 || got.LastError != "engine unavailable" {
		t.Errorf("got %+v", got)
	}
	if got.Mode != models.DispatchAsync || got.IndexName != "documents" {
		t.Errorf("got %+v", got)
	}

	if err := store.UpdateTicket(ctx, &models.DispatchTicket{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetTicket(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_CountTicketsByStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	statuses := []models.TicketStatus{models.TicketSucceeded, models.TicketSucceeded, models.TicketFailed}
	for i, st := range statuses {
		tk := &models.DispatchTicket{ID: string(rune('a' + i)), DocumentID: "d", IndexName: "documents", Mode: models.DispatchSync, Status: st}
		if err := store.CreateTicket(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}
	counts, err := store.CountTicketsByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.TicketSucceeded] != 2 || counts[models.TicketFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if counts[models.TicketPending] != 0 {
		t.Errorf("pending = %d, want 0", counts[models.TicketPending])
	}
}
