// Package confirm implements preview-then-commit for every command with an
// irreversible effect: application review, loan signing and payment.
//
// Opening a preview mints a token recorded in the ledger. The commit must
// present that token; it is consumed atomically before the mutation is sent,
// so a command is issued at most once per shown preview and never without one.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/domain"
	"github.com/agrocredit/agrolend/internal/infra/observability"
)

// State is the position of one preview in the flow.
type State int

const (
	Idle State = iota
	PreviewRequested
	PreviewShown
	Confirmed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PreviewRequested:
		return "preview_requested"
	case PreviewShown:
		return "preview_shown"
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Ledger events recorded in metrics.
const (
	eventIssued    = "issued"
	eventConfirmed = "confirmed"
	eventCancelled = "cancelled"
	eventRefused   = "refused"
	eventFailed    = "failed"
)

// Flow coordinates previews and commits.
type Flow struct {
	docs     domain.DocumentAPI
	bank     domain.BankAPI
	farmer   domain.FarmerAPI
	ledger   domain.PreviewLedger
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
	logger   *zap.Logger
}

// Option configures a Flow.
type Option func(*Flow)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// WithTokens replaces the uuid token source.
func WithTokens(next func() string) Option {
	return func(f *Flow) { f.newToken = next }
}

// WithLogger sets the flow logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// New creates a Flow whose previews live for ttl.
func New(docs domain.DocumentAPI, bank domain.BankAPI, farmer domain.FarmerAPI, ledger domain.PreviewLedger, ttl time.Duration, opts ...Option) *Flow {
	f := &Flow{
		docs:     docs,
		bank:     bank,
		farmer:   farmer,
		ledger:   ledger,
		ttl:      ttl,
		now:      time.Now,
		newToken: uuid.NewString,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ─── Application Review ─────────────────────────────────────────────────────

// PreviewReview generates the contract (approve) or rejection notice (reject)
// for app and records the preview. Document generation never mutates; on
// failure nothing is recorded and the flow stays idle.
func (f *Flow) PreviewReview(ctx context.Context, sess domain.Session, app domain.LoanApplication, approve bool) (domain.Preview, error) {
	cmd := domain.ReviewCommand(approve)
	req := domain.DocumentRequest{
		ApplicationID: app.ID,
		FarmerName:    app.FarmerName,
		Amount:        app.Amount,
	}
	f.logger.Debug("preview requested",
		zap.String("command", string(cmd)),
		zap.Int64("application_id", app.ID))

	var (
		doc domain.Document
		err error
	)
	if approve {
		doc, err = f.docs.Contract(ctx, req)
	} else {
		doc, err = f.docs.Rejection(ctx, req)
	}
	if err != nil {
		observability.Previews.WithLabelValues(string(cmd), eventFailed).Inc()
		return domain.Preview{}, fmt.Errorf("generate document: %w", err)
	}

	return f.issue(ctx, sess, cmd, app.ID, doc, app.Amount)
}

// ConfirmReview consumes token and submits the decision. An invalid token is
// refused before any call reaches the API.
func (f *Flow) ConfirmReview(ctx context.Context, sess domain.Session, token string, appID int64, approve bool) error {
	cmd := domain.ReviewCommand(approve)
	if _, err := f.consume(ctx, sess, token, cmd, appID); err != nil {
		return err
	}
	if err := f.bank.Review(ctx, appID, cmd.Approves()); err != nil {
		observability.Previews.WithLabelValues(string(cmd), eventFailed).Inc()
		return fmt.Errorf("review application %d: %w", appID, err)
	}
	f.logger.Info("application reviewed",
		zap.Int64("application_id", appID),
		zap.Bool("approved", approve),
		zap.String("actor", sess.Actor()))
	return nil
}

// ─── Loan Signing ───────────────────────────────────────────────────────────

// OpenSign records the signing modal for loanID. doc is the static agreement
// text shown in it.
func (f *Flow) OpenSign(ctx context.Context, sess domain.Session, loanID int64, doc domain.Document) (domain.Preview, error) {
	return f.issue(ctx, sess, domain.CommandSign, loanID, doc, 0)
}

// ConfirmSign consumes token and signs the loan.
func (f *Flow) ConfirmSign(ctx context.Context, sess domain.Session, token string, loanID int64) error {
	if _, err := f.consume(ctx, sess, token, domain.CommandSign, loanID); err != nil {
		return err
	}
	if err := f.farmer.SignLoan(ctx, loanID); err != nil {
		observability.Previews.WithLabelValues(string(domain.CommandSign), eventFailed).Inc()
		return fmt.Errorf("sign loan %d: %w", loanID, err)
	}
	f.logger.Info("loan signed", zap.Int64("loan_id", loanID), zap.String("actor", sess.Actor()))
	return nil
}

// ─── Payment ────────────────────────────────────────────────────────────────

// OpenPayment records the payment modal for loanID.
func (f *Flow) OpenPayment(ctx context.Context, sess domain.Session, loanID int64) (domain.Preview, error) {
	return f.issue(ctx, sess, domain.CommandPay, loanID, domain.Document{}, 0)
}

// ConfirmPayment validates rawAmount, consumes token and posts the payment.
// An invalid amount returns domain.ErrInvalidAmount with the token still
// usable and no call issued.
func (f *Flow) ConfirmPayment(ctx context.Context, sess domain.Session, token string, loanID int64, rawAmount string) (float64, error) {
	amount, err := domain.ParseAmount(rawAmount)
	if err != nil {
		return 0, err
	}
	if _, err := f.consume(ctx, sess, token, domain.CommandPay, loanID); err != nil {
		return 0, err
	}
	if err := f.farmer.Pay(ctx, loanID, amount); err != nil {
		observability.Previews.WithLabelValues(string(domain.CommandPay), eventFailed).Inc()
		return 0, fmt.Errorf("pay loan %d: %w", loanID, err)
	}
	f.logger.Info("payment posted",
		zap.Int64("loan_id", loanID),
		zap.Float64("amount", amount),
		zap.String("actor", sess.Actor()))
	return amount, nil
}

// ─── Shared ─────────────────────────────────────────────────────────────────

// Cancel dismisses a shown preview. No server mutation occurs.
func (f *Flow) Cancel(ctx context.Context, token string) error {
	p, err := f.ledger.Get(ctx, token)
	if err != nil {
		return err
	}
	if err := f.ledger.Cancel(ctx, token, f.now()); err != nil {
		return err
	}
	observability.Previews.WithLabelValues(string(p.Command), eventCancelled).Inc()
	return nil
}

// Lookup returns the preview behind token when it is still open for sess.
func (f *Flow) Lookup(ctx context.Context, sess domain.Session, token string) (domain.Preview, error) {
	p, err := f.ledger.Get(ctx, token)
	if err != nil {
		return domain.Preview{}, err
	}
	if p.Actor != sess.Actor() {
		return domain.Preview{}, domain.ErrPreviewMismatch
	}
	switch {
	case p.Settled():
		return domain.Preview{}, domain.ErrPreviewConsumed
	case p.Expired(f.now()):
		return domain.Preview{}, domain.ErrPreviewExpired
	}
	return p, nil
}

// State reports where token stands. Unknown and expired tokens are idle.
func (f *Flow) State(ctx context.Context, token string) (State, error) {
	p, err := f.ledger.Get(ctx, token)
	if errors.Is(err, domain.ErrPreviewNotFound) {
		return Idle, nil
	}
	if err != nil {
		return Idle, err
	}
	switch {
	case p.ConsumedAt != nil:
		return Confirmed, nil
	case p.CancelledAt != nil:
		return Cancelled, nil
	case p.Expired(f.now()):
		return Idle, nil
	default:
		return PreviewShown, nil
	}
}

// Refused reports whether err is a ledger refusal rather than an upstream
// failure.
func Refused(err error) bool {
	return errors.Is(err, domain.ErrPreviewNotFound) ||
		errors.Is(err, domain.ErrPreviewConsumed) ||
		errors.Is(err, domain.ErrPreviewExpired) ||
		errors.Is(err, domain.ErrPreviewMismatch)
}

func (f *Flow) issue(ctx context.Context, sess domain.Session, cmd domain.Command, subjectID int64, doc domain.Document, amount float64) (domain.Preview, error) {
	now := f.now()
	p := domain.Preview{
		Token:     f.newToken(),
		Command:   cmd,
		SubjectID: subjectID,
		Actor:     sess.Actor(),
		Document:  doc,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: now.Add(f.ttl),
	}
	if err := f.ledger.Issue(ctx, p); err != nil {
		return domain.Preview{}, err
	}
	observability.Previews.WithLabelValues(string(cmd), eventIssued).Inc()
	f.logger.Debug("preview shown",
		zap.String("command", string(cmd)),
		zap.Int64("subject_id", subjectID),
		zap.Time("expires_at", p.ExpiresAt))
	return p, nil
}

func (f *Flow) consume(ctx context.Context, sess domain.Session, token string, cmd domain.Command, subjectID int64) (domain.Preview, error) {
	if token == "" {
		observability.Previews.WithLabelValues(string(cmd), eventRefused).Inc()
		return domain.Preview{}, domain.ErrPreviewNotFound
	}
	if cur, err := f.ledger.Get(ctx, token); err == nil && cur.Actor != sess.Actor() {
		observability.Previews.WithLabelValues(string(cmd), eventRefused).Inc()
		return domain.Preview{}, domain.ErrPreviewMismatch
	}

	p, err := f.ledger.Consume(ctx, token, cmd, subjectID, f.now())
	if err != nil {
		observability.Previews.WithLabelValues(string(cmd), eventRefused).Inc()
		f.logger.Warn("commit refused",
			zap.String("command", string(cmd)),
			zap.Int64("subject_id", subjectID),
			zap.Error(err))
		return domain.Preview{}, err
	}
	observability.Previews.WithLabelValues(string(cmd), eventConfirmed).Inc()
	return p, nil
}
