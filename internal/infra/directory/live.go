package directory

import (
	"context"
	"fmt"

	"github.com/agrocredit/agrolend/internal/app/view"
	"github.com/agrocredit/agrolend/internal/domain"
)

// Live builds the directory from the lending API. The API exposes a single
// farmer, so the list has at most one card.
type Live struct {
	api domain.FarmerAPI
}

var _ domain.FarmerDirectory = (*Live)(nil)

// NewLive wraps api.
func NewLive(api domain.FarmerAPI) *Live {
	return &Live{api: api}
}

// Farmers fetches profile and loans together; either failing fails the call.
func (l *Live) Farmers(ctx context.Context) ([]domain.FarmerRating, error) {
	var (
		profile domain.FarmerProfile
		loans   []domain.Credit
	)
	err := view.LoadAll(ctx,
		func(ctx context.Context) (err error) {
			profile, err = l.api.Profile(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			loans, err = l.api.Loans(ctx)
			return err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("live directory: %w", err)
	}
	return []domain.FarmerRating{rate(profile, loans)}, nil
}

// Credits returns the API loans for the exposed farmer and nothing for any
// other id.
func (l *Live) Credits(ctx context.Context, farmerID int64) ([]domain.Credit, error) {
	profile, err := l.api.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("live directory: %w", err)
	}
	if profile.ID != farmerID {
		return []domain.Credit{}, nil
	}
	return l.api.Loans(ctx)
}

// rate scales the 0..1000 bureau score to the directory's 0..100 band and
// lists what the loans show.
func rate(p domain.FarmerProfile, loans []domain.Credit) domain.FarmerRating {
	r := domain.FarmerRating{
		ID:    p.ID,
		Name:  p.FullName,
		Farm:  p.FarmName,
		Score: min(max(p.CreditScore/10, 0), 100),
	}

	var active, waiting int
	var paid float64
	for _, c := range loans {
		switch c.Status {
		case domain.CreditActive:
			active++
		case domain.CreditWaitingSignature:
			waiting++
		}
		paid += c.Paid
	}
	r.ActiveCredits = active

	if p.CreditScore >= 700 {
		r.Strengths = append(r.Strengths, fmt.Sprintf("Credit score %d", p.CreditScore))
	} else {
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Credit score %d", p.CreditScore))
	}
	if paid > 0 {
		r.Strengths = append(r.Strengths, fmt.Sprintf("%.0f repaid across %d credits", paid, len(loans)))
	}
	if p.FarmSize > 0 {
		r.Strengths = append(r.Strengths, fmt.Sprintf("Farm of %.0f ha", p.FarmSize))
	}
	if waiting > 0 {
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("%d contract(s) awaiting signature", waiting))
	}
	if active > 1 {
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("%d concurrent active credits", active))
	}

	switch r.Category() {
	case domain.ScoreHigh:
		r.Summary = "Strong bureau score on the live profile."
	case domain.ScoreMedium:
		r.Summary = "Average bureau score; monitor repayments."
	default:
		r.Summary = "Weak bureau score; limit exposure."
	}
	return r
}
