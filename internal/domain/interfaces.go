package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// FarmerAPI is the farmer-facing half of the remote lending API.
type FarmerAPI interface {
	Summary(ctx context.Context) (FarmerSummary, error)
	Loans(ctx context.Context) ([]Credit, error)
	Utilities(ctx context.Context) ([]UtilityReading, error)
	LatestRecommendation(ctx context.Context) (Recommendation, error)
	Profile(ctx context.Context) (FarmerProfile, error)
	CreateLoan(ctx context.Context, req LoanRequest) (Credit, error)
	SignLoan(ctx context.Context, loanID int64) error
	Pay(ctx context.Context, loanID int64, amount float64) error
	Notifications(ctx context.Context) ([]Notification, error)
}

// BankAPI is the back-office half of the remote lending API.
type BankAPI interface {
	Dashboard(ctx context.Context) (DashboardStats, error)
	Applications(ctx context.Context) ([]LoanApplication, error)
	Review(ctx context.Context, applicationID int64, approved bool) error
}

// DocumentAPI generates preview documents. Generation never mutates state.
type DocumentAPI interface {
	Contract(ctx context.Context, req DocumentRequest) (Document, error)
	Rejection(ctx context.Context, req DocumentRequest) (Document, error)
}

// Backend is the whole remote API.
type Backend interface {
	FarmerAPI
	BankAPI
	DocumentAPI
}

// PreviewLedger persists shown previews so a commit can be checked against one.
type PreviewLedger interface {
	Issue(ctx context.Context, p Preview) error
	Get(ctx context.Context, token string) (Preview, error)
	// Consume atomically settles the token for cmd on subjectID, failing with
	// one of the ErrPreview* errors when it cannot be used.
	Consume(ctx context.Context, token string, cmd Command, subjectID int64, now time.Time) (Preview, error)
	Cancel(ctx context.Context, token string, now time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// FarmerDirectory is the capability behind the bank's farmer list.
type FarmerDirectory interface {
	Farmers(ctx context.Context) ([]FarmerRating, error)
	Credits(ctx context.Context, farmerID int64) ([]Credit, error)
}
