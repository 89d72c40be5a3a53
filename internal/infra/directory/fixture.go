package directory

import (
	"context"

	"github.com/agrocredit/agrolend/internal/domain"
)

// Fixture is a static directory. Records are copied on every read.
type Fixture struct {
	farmers []domain.FarmerRating
	credits map[int64][]domain.Credit
}

var _ domain.FarmerDirectory = (*Fixture)(nil)

// NewFixture returns the demo portfolio.
func NewFixture() *Fixture {
	return &Fixture{
		farmers: []domain.FarmerRating{
			{
				ID:            1,
				Name:          "Aziz Gofurov",
				Farm:          "Petrov Family Farm",
				Score:         85,
				ActiveCredits: 1,
				Strengths: []string{
					"Excellent repayment history (90% on-time rate)",
					"Diversified crop portfolio reducing risk",
					"Strong land ownership (150+ acres)",
					"Modern irrigation infrastructure",
				},
				Weaknesses: []string{
					"Limited prior loan experience",
					"Single-source income dependency",
				},
				Summary: "High creditworthiness with strong agricultural assets and proven track record.",
			},
			{
				ID:            2,
				Name:          "Maria Ivanova",
				Farm:          "Sunrise Valley Farm",
				Score:         68,
				ActiveCredits: 2,
				Strengths: []string{
					"Moderate repayment history (75% on-time)",
					"Owns equipment (tractors, harvesters)",
					"5 years farming experience",
				},
				Weaknesses: []string{
					"Past loan default 2 years ago",
					"Limited land size (40 acres)",
					"Aging equipment needs replacement",
					"Single crop dependency (wheat only)",
				},
				Summary: "Average risk profile. Shows improvement but requires close monitoring.",
			},
			{
				ID:            3,
				Name:          "Sergey Novikov",
				Farm:          "Green Start Farm",
				Score:         42,
				ActiveCredits: 0,
				Strengths: []string{
					"High motivation and recent training",
					"Access to local agricultural support programs",
				},
				Weaknesses: []string{
					"First-time farmer with no credit history",
					"Leased land (no ownership)",
					"Minimal equipment and infrastructure",
					"No established market channels",
					"High debt-to-income ratio",
				},
				Summary: "High risk. Requires significant support, smaller loan amounts, and close mentorship.",
			},
		},
		credits: map[int64][]domain.Credit{
			1: {
				{ID: 11, Amount: 50000, Remaining: 35000, Rate: 12, TermMonths: 12, Status: domain.CreditActive, Paid: 15000, Progress: 30},
			},
			2: {
				{ID: 101, Amount: 30000, Remaining: 18000, Rate: 12, TermMonths: 24, Status: domain.CreditActive, Paid: 12000, Progress: 40},
				{ID: 102, Amount: 25000, Remaining: 10000, Rate: 11, TermMonths: 18, Status: domain.CreditActive, Paid: 15000, Progress: 60},
			},
		},
	}
}

// Farmers returns every fixture card.
func (f *Fixture) Farmers(context.Context) ([]domain.FarmerRating, error) {
	out := make([]domain.FarmerRating, len(f.farmers))
	copy(out, f.farmers)
	return out, nil
}

// Credits returns the fixture credits for farmerID, empty when it has none.
func (f *Fixture) Credits(_ context.Context, farmerID int64) ([]domain.Credit, error) {
	src := f.credits[farmerID]
	out := make([]domain.Credit, len(src))
	copy(out, src)
	return out, nil
}
