package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agrocredit/agrolend/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func issue(t *testing.T, db *DB, token string, cmd domain.Command, subject int64) domain.Preview {
	t.Helper()
	p := domain.Preview{
		Token:     token,
		Command:   cmd,
		SubjectID: subject,
		Actor:     "bank:officer",
		Document:  domain.Document{Title: "LOAN AGREEMENT", Content: "terms"},
		CreatedAt: epoch,
		ExpiresAt: epoch.Add(15 * time.Minute),
	}
	if err := db.Issue(context.Background(), p); err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return p
}

// ─── Issue / Get ────────────────────────────────────────────────────────────

func TestPreviews_IssueAndGet(t *testing.T) {
	db := newTestDB(t)
	issue(t, db, "tok-1", domain.CommandApprove, 42)

	got, err := db.Get(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Command != domain.CommandApprove {
		t.Errorf("Command = %q, want %q", got.Command, domain.CommandApprove)
	}
	if got.SubjectID != 42 {
		t.Errorf("SubjectID = %d, want 42", got.SubjectID)
	}
	if got.Document.Title != "LOAN AGREEMENT" {
		t.Errorf("Document.Title = %q", got.Document.Title)
	}
	if !got.ExpiresAt.Equal(epoch.Add(15 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", got.ExpiresAt)
	}
	if got.Settled() {
		t.Error("fresh preview reported settled")
	}
}

func TestPreviews_GetMissing(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrPreviewNotFound) {
		t.Errorf("Get() error = %v, want ErrPreviewNotFound", err)
	}
}

func TestPreviews_DuplicateTokenRejected(t *testing.T) {
	db := newTestDB(t)
	p := issue(t, db, "dup", domain.CommandSign, 5)
	if err := db.Issue(context.Background(), p); err == nil {
		t.Error("second Issue() with same token should fail")
	}
}

// ─── Consume ────────────────────────────────────────────────────────────────

func TestPreviews_ConsumeOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issue(t, db, "tok", domain.CommandReject, 42)

	p, err := db.Consume(ctx, "tok", domain.CommandReject, 42, epoch.Add(time.Minute))
	if err != nil {
		t.Fatalf("Consume() error: %v", err)
	}
	if p.ConsumedAt == nil {
		t.Fatal("ConsumedAt not set")
	}

	if _, err := db.Consume(ctx, "tok", domain.CommandReject, 42, epoch.Add(2*time.Minute)); !errors.Is(err, domain.ErrPreviewConsumed) {
		t.Errorf("second Consume() error = %v, want ErrPreviewConsumed", err)
	}
}

func TestPreviews_ConsumeRefusals(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		cmd     domain.Command
		subject int64
		at      time.Time
		want    error
	}{
		{"unknown token", "missing", domain.CommandApprove, 42, epoch, domain.ErrPreviewNotFound},
		{"other command", "tok", domain.CommandReject, 42, epoch, domain.ErrPreviewMismatch},
		{"other subject", "tok", domain.CommandApprove, 43, epoch, domain.ErrPreviewMismatch},
		{"at expiry", "tok", domain.CommandApprove, 42, epoch.Add(15 * time.Minute), domain.ErrPreviewExpired},
		{"after expiry", "tok", domain.CommandApprove, 42, epoch.Add(time.Hour), domain.ErrPreviewExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			issue(t, db, "tok", domain.CommandApprove, 42)

			_, err := db.Consume(context.Background(), tt.token, tt.cmd, tt.subject, tt.at)
			if !errors.Is(err, tt.want) {
				t.Errorf("Consume() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPreviews_RefusalLeavesTokenUsable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issue(t, db, "tok", domain.CommandPay, 7)

	if _, err := db.Consume(ctx, "tok", domain.CommandPay, 8, epoch); !errors.Is(err, domain.ErrPreviewMismatch) {
		t.Fatalf("mismatch Consume() error = %v", err)
	}
	if _, err := db.Consume(ctx, "tok", domain.CommandPay, 7, epoch); err != nil {
		t.Errorf("Consume() after mismatch error: %v", err)
	}
}

// ─── Cancel ─────────────────────────────────────────────────────────────────

func TestPreviews_CancelBlocksConsume(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issue(t, db, "tok", domain.CommandApprove, 42)

	if err := db.Cancel(ctx, "tok", epoch); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	got, _ := db.Get(ctx, "tok")
	if got.CancelledAt == nil {
		t.Error("CancelledAt not set")
	}
	if _, err := db.Consume(ctx, "tok", domain.CommandApprove, 42, epoch); !errors.Is(err, domain.ErrPreviewConsumed) {
		t.Errorf("Consume() after cancel error = %v, want ErrPreviewConsumed", err)
	}
	if err := db.Cancel(ctx, "tok", epoch); err != nil {
		t.Errorf("repeated Cancel() error: %v", err)
	}
}

func TestPreviews_CancelMissing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Cancel(context.Background(), "ghost", epoch); !errors.Is(err, domain.ErrPreviewNotFound) {
		t.Errorf("Cancel() error = %v, want ErrPreviewNotFound", err)
	}
}

// ─── Purge ──────────────────────────────────────────────────────────────────

func TestPreviews_PurgeExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	issue(t, db, "old", domain.CommandSign, 1)

	fresh := domain.Preview{
		Token: "new", Command: domain.CommandSign, SubjectID: 2,
		CreatedAt: epoch.Add(time.Hour), ExpiresAt: epoch.Add(2 * time.Hour),
	}
	if err := db.Issue(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := db.PurgeExpired(ctx, epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired() error: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if _, err := db.Get(ctx, "old"); !errors.Is(err, domain.ErrPreviewNotFound) {
		t.Errorf("expired preview still present: %v", err)
	}
	if _, err := db.Get(ctx, "new"); err != nil {
		t.Errorf("live preview purged: %v", err)
	}
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error: %v", err)
	}
	defer db.Close()
	issue(t, db, "mem", domain.CommandPay, 3)
	if _, err := db.Get(context.Background(), "mem"); err != nil {
		t.Errorf("Get() error: %v", err)
	}
}
