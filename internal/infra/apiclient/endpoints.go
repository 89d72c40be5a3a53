package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agrocredit/agrolend/internal/domain"
)

var _ domain.Backend = (*Client)(nil)

// ─── Farmer Endpoints ───────────────────────────────────────────────────────

// Summary returns the farmer's debt/credits/score header.
func (c *Client) Summary(ctx context.Context) (domain.FarmerSummary, error) {
	var out domain.FarmerSummary
	err := c.Do(ctx, "farmers.summary", http.MethodGet, "/farmers/summary", nil, &out)
	return out, err
}

// Loans returns the farmer's credits.
func (c *Client) Loans(ctx context.Context) ([]domain.Credit, error) {
	var out []domain.Credit
	if err := c.Do(ctx, "farmers.loans", http.MethodGet, "/farmers/loans", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Credit{}
	}
	return out, nil
}

// Utilities returns the farm's meter readings.
func (c *Client) Utilities(ctx context.Context) ([]domain.UtilityReading, error) {
	var out []domain.UtilityReading
	if err := c.Do(ctx, "farmers.utilities", http.MethodGet, "/farmers/utilities", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.UtilityReading{}
	}
	return out, nil
}

// LatestRecommendation returns the daily recommendation.
func (c *Client) LatestRecommendation(ctx context.Context) (domain.Recommendation, error) {
	var out domain.Recommendation
	err := c.Do(ctx, "farmers.recommendation", http.MethodGet, "/farmers/recommendations/latest", nil, &out)
	return out, err
}

// Profile returns the farmer's account record.
func (c *Client) Profile(ctx context.Context) (domain.FarmerProfile, error) {
	var out domain.FarmerProfile
	err := c.Do(ctx, "farmers.profile", http.MethodGet, "/farmers/profile", nil, &out)
	return out, err
}

// CreateLoan submits a new loan application.
func (c *Client) CreateLoan(ctx context.Context, req domain.LoanRequest) (domain.Credit, error) {
	var out domain.Credit
	err := c.Do(ctx, "farmers.create_loan", http.MethodPost, "/farmers/loans", req, &out)
	return out, err
}

// SignLoan signs the contract of a loan awaiting signature.
func (c *Client) SignLoan(ctx context.Context, loanID int64) error {
	path := fmt.Sprintf("/farmers/loans/%d/sign", loanID)
	return c.Do(ctx, "farmers.sign_loan", http.MethodPost, path, nil, nil)
}

// Pay posts a payment against an active loan.
func (c *Client) Pay(ctx context.Context, loanID int64, amount float64) error {
	path := fmt.Sprintf("/farmers/loans/%d/pay", loanID)
	return c.Do(ctx, "farmers.pay", http.MethodPost, path, domain.PaymentRequest{Amount: amount}, nil)
}

// Notifications returns the farmer's notifications. A payload that is not an
// array decodes to an empty list.
func (c *Client) Notifications(ctx context.Context) ([]domain.Notification, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, "farmers.notifications", http.MethodGet, "/farmers/notifications", nil, &raw); err != nil {
		return nil, err
	}
	return domain.DecodeNotifications(raw), nil
}

// ─── Bank Endpoints ─────────────────────────────────────────────────────────

// Dashboard returns the bank portfolio stats.
func (c *Client) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	var out domain.DashboardStats
	err := c.Do(ctx, "bank.dashboard", http.MethodGet, "/bank/dashboard", nil, &out)
	return out, err
}

// Applications returns the pending loan applications.
func (c *Client) Applications(ctx context.Context) ([]domain.LoanApplication, error) {
	var out []domain.LoanApplication
	if err := c.Do(ctx, "bank.applications", http.MethodGet, "/bank/applications", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.LoanApplication{}
	}
	return out, nil
}

// Review records the bank's decision on an application.
func (c *Client) Review(ctx context.Context, applicationID int64, approved bool) error {
	path := fmt.Sprintf("/bank/applications/%d/review", applicationID)
	return c.Do(ctx, "bank.review", http.MethodPost, path, domain.ReviewDecision{Approved: approved}, nil)
}

// ─── Document Endpoints ─────────────────────────────────────────────────────

// Contract generates the loan agreement preview.
func (c *Client) Contract(ctx context.Context, req domain.DocumentRequest) (domain.Document, error) {
	var out domain.Document
	err := c.Do(ctx, "documents.contract", http.MethodPost, "/documents/contract", req, &out)
	return out, err
}

// Rejection generates the adverse action notice preview.
func (c *Client) Rejection(ctx context.Context, req domain.DocumentRequest) (domain.Document, error) {
	var out domain.Document
	err := c.Do(ctx, "documents.rejection", http.MethodPost, "/documents/rejection", req, &out)
	return out, err
}
