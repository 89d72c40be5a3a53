package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ─── Credit Types ───────────────────────────────────────────────────────────
// A Credit is a point-in-time snapshot from the server. The client never
// mutates it; sign and pay are commands followed by a re-fetch.

// CreditStatus is the lifecycle stage of a credit.
type CreditStatus string

const (
	CreditPending          CreditStatus = "pending"
	CreditWaitingSignature CreditStatus = "waiting_signature"
	CreditActive           CreditStatus = "active"
	CreditRejected         CreditStatus = "rejected"
	CreditClosed           CreditStatus = "closed"
)

// Known reports whether s is one of the statuses the views style explicitly.
func (s CreditStatus) Known() bool {
	switch s {
	case CreditPending, CreditWaitingSignature, CreditActive, CreditRejected, CreditClosed:
		return true
	}
	return false
}

// Credit is a disbursed or pending lending agreement.
type Credit struct {
	ID          int64        `json:"id"`
	Amount      float64      `json:"amount"`
	Remaining   float64      `json:"remaining"`
	Rate        float64      `json:"rate"`
	TermMonths  int          `json:"term_months"`
	Status      CreditStatus `json:"status"`
	Paid        float64      `json:"paid"`
	Progress    int          `json:"progress"`
	NextPayment float64      `json:"next_payment"`
	DueDate     string       `json:"due_date"`
}

// Signable reports whether the credit awaits the farmer's signature.
func (c Credit) Signable() bool { return c.Status == CreditWaitingSignature }

// Payable reports whether payments can be posted against the credit.
func (c Credit) Payable() bool { return c.Status == CreditActive }

// UnderReview reports whether the bank has not decided yet.
func (c Credit) UnderReview() bool { return c.Status == CreditPending }

// ProgressPct returns repayment progress clamped to 0..100.
func (c Credit) ProgressPct() int { return clampPct(c.Progress) }

// StatusKey returns the catalog key used to label the status badge.
func (c Credit) StatusKey() string {
	if !c.Status.Known() {
		return "status.other"
	}
	return "status." + string(c.Status)
}

// ─── Derived Computations ───────────────────────────────────────────────────

// NominalAnnualRate is the rate used for the non-binding monthly estimate.
const NominalAnnualRate = 0.12

// TermOptions are the loan terms, in months, offered on the application form.
var TermOptions = []int{3, 6, 12, 24, 36}

// EstimateMonthlyPayment applies the nominal rate linearly over the term:
// amount × (1 + 0.12 × term/12) / term. Non-positive inputs yield 0.
func EstimateMonthlyPayment(amount float64, termMonths int) float64 {
	if amount <= 0 || termMonths <= 0 {
		return 0
	}
	t := float64(termMonths)
	return amount * (1 + NominalAnnualRate*t/12) / t
}

// Amount bounds accepted from forms. Anything finer than a cent or larger than
// MaxAmount is rejected before it can reach the wire.
var (
	MinAmount = decimal.New(1, -2)
	MaxAmount = decimal.New(1, 12)
)

// ParseAmount parses a user-entered money amount. It accepts decimal or
// exponent notation within [MinAmount, MaxAmount] and returns a finite,
// positive float.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s is not positive", ErrInvalidAmount, d.String())
	}
	if d.LessThan(MinAmount) || d.GreaterThan(MaxAmount) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	f := d.InexactFloat64()
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: %s has no float representation", ErrInvalidAmount, d.String())
	}
	return f, nil
}

// ValidTerm reports whether months is one of TermOptions.
func ValidTerm(months int) bool {
	for _, t := range TermOptions {
		if t == months {
			return true
		}
	}
	return false
}

// ValidateLoanRequest performs the basic numeric range checks on a new
// application. Everything else is left to the server.
func ValidateLoanRequest(req LoanRequest) error {
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !ValidTerm(req.TermMonths) {
		return fmt.Errorf("%w: %d months", ErrInvalidTerm, req.TermMonths)
	}
	if strings.TrimSpace(req.Purpose) == "" {
		return ErrEmptyPurpose
	}
	return nil
}

// ─── Farmer Directory ───────────────────────────────────────────────────────

// ScoreCategory buckets a directory score for colouring.
type ScoreCategory string

const (
	ScoreHigh   ScoreCategory = "high"
	ScoreMedium ScoreCategory = "medium"
	ScoreLow    ScoreCategory = "low"
)

// FarmerRating is one card of the bank's farmer directory.
type FarmerRating struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Farm          string   `json:"farm"`
	Score         int      `json:"score"`
	ActiveCredits int      `json:"active_credits"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Summary       string   `json:"summary"`
}

// Category derives the score band.
func (f FarmerRating) Category() ScoreCategory {
	switch {
	case f.Score >= 75:
		return ScoreHigh
	case f.Score >= 50:
		return ScoreMedium
	default:
		return ScoreLow
	}
}
