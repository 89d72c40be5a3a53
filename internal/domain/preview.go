package domain

import "time"

// ─── Confirmation Previews ──────────────────────────────────────────────────
// A command with an irreversible effect is committed only by presenting the
// token minted when its preview was shown. Tokens are single use and bound to
// the command kind and subject.

// Command names a state-changing operation that needs a preview.
type Command string

const (
	CommandApprove Command = "review.approve"
	CommandReject  Command = "review.reject"
	CommandSign    Command = "loan.sign"
	CommandPay     Command = "loan.pay"
)

// ReviewCommand maps an approve/reject choice to its command.
func ReviewCommand(approve bool) Command {
	if approve {
		return CommandApprove
	}
	return CommandReject
}

// Approves reports whether the command is a positive review decision.
func (c Command) Approves() bool { return c == CommandApprove }

// Preview is the ledger record of a shown preview.
type Preview struct {
	Token       string     `json:"token"`
	Command     Command    `json:"command"`
	SubjectID   int64      `json:"subject_id"`
	Actor       string     `json:"actor"`
	Document    Document   `json:"document"`
	Amount      float64    `json:"amount,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Expired reports whether the preview can no longer be confirmed at now.
func (p Preview) Expired(now time.Time) bool { return !now.Before(p.ExpiresAt) }

// Settled reports whether the preview was already confirmed or cancelled.
func (p Preview) Settled() bool { return p.ConsumedAt != nil || p.CancelledAt != nil }
