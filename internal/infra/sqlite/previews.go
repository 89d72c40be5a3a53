// Preview ledger schema and operations.
// Every confirmation preview shown to a user is recorded here; the matching
// commit must consume it exactly once.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agrocredit/agrolend/internal/domain"
)

var _ domain.PreviewLedger = (*DB)(nil)

// ─── Preview Schema ─────────────────────────────────────────────────────────

// PreviewMigrations returns the preview ledger schema statements.
// Timestamps are unix nanoseconds so range predicates compare numerically.
func PreviewMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS previews (
			token        TEXT PRIMARY KEY,
			command      TEXT NOT NULL,
			subject_id   INTEGER NOT NULL,
			actor        TEXT NOT NULL DEFAULT '',
			doc_title    TEXT NOT NULL DEFAULT '',
			doc_content  TEXT NOT NULL DEFAULT '',
			amount       REAL NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL,
			expires_at   INTEGER NOT NULL,
			consumed_at  INTEGER,
			cancelled_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_previews_expires ON previews(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_previews_subject ON previews(command, subject_id)`,
	}
}

// ─── Preview Operations ─────────────────────────────────────────────────────

// Issue records a freshly shown preview.
func (db *DB) Issue(ctx context.Context, p domain.Preview) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO previews (token, command, subject_id, actor, doc_title, doc_content, amount, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Token, string(p.Command), p.SubjectID, p.Actor, p.Document.Title, p.Document.Content, p.Amount,
		p.CreatedAt.UnixNano(), p.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("issue preview: %w", err)
	}
	return nil
}

// Get returns the preview stored under token.
func (db *DB) Get(ctx context.Context, token string) (domain.Preview, error) {
	return getPreview(ctx, db.db, token)
}

// Consume settles token for cmd on subjectID. The checks and the update run
// in one transaction so a token can never be consumed twice.
func (db *DB) Consume(ctx context.Context, token string, cmd domain.Command, subjectID int64, now time.Time) (domain.Preview, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Preview{}, fmt.Errorf("begin consume: %w", err)
	}
	defer tx.Rollback()

	p, err := getPreview(ctx, tx, token)
	if err != nil {
		return domain.Preview{}, err
	}
	switch {
	case p.Settled():
		return p, domain.ErrPreviewConsumed
	case p.Expired(now):
		return p, domain.ErrPreviewExpired
	case p.Command != cmd || p.SubjectID != subjectID:
		return p, domain.ErrPreviewMismatch
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE previews SET consumed_at = ?
		WHERE token = ? AND consumed_at IS NULL AND cancelled_at IS NULL
	`, now.UnixNano(), token)
	if err != nil {
		return domain.Preview{}, fmt.Errorf("consume preview: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return p, domain.ErrPreviewConsumed
	}
	if err := tx.Commit(); err != nil {
		return domain.Preview{}, fmt.Errorf("commit consume: %w", err)
	}

	consumed := now
	p.ConsumedAt = &consumed
	return p, nil
}

// Cancel settles token without any effect. Cancelling an already settled
// preview is a no-op.
func (db *DB) Cancel(ctx context.Context, token string, now time.Time) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE previews SET cancelled_at = ?
		WHERE token = ? AND consumed_at IS NULL AND cancelled_at IS NULL
	`, now.UnixNano(), token)
	if err != nil {
		return fmt.Errorf("cancel preview: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.Get(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpired deletes previews whose expiry has passed, settled or not.
func (db *DB) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.db.ExecContext(ctx, `DELETE FROM previews WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge previews: %w", err)
	}
	return res.RowsAffected()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPreview(ctx context.Context, q queryer, token string) (domain.Preview, error) {
	var (
		p                   domain.Preview
		command             string
		created, expires    int64
		consumed, cancelled sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT token, command, subject_id, actor, doc_title, doc_content, amount,
		       created_at, expires_at, consumed_at, cancelled_at
		FROM previews WHERE token = ?
	`, token).Scan(&p.Token, &command, &p.SubjectID, &p.Actor, &p.Document.Title, &p.Document.Content,
		&p.Amount, &created, &expires, &consumed, &cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Preview{}, domain.ErrPreviewNotFound
	}
	if err != nil {
		return domain.Preview{}, fmt.Errorf("get preview: %w", err)
	}

	p.Command = domain.Command(command)
	p.CreatedAt = time.Unix(0, created).UTC()
	p.ExpiresAt = time.Unix(0, expires).UTC()
	p.ConsumedAt = nullTime(consumed)
	p.CancelledAt = nullTime(cancelled)
	return p, nil
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
