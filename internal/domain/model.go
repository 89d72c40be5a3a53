// Package domain contains the lending records, derived display computations and
// boundary interfaces. It has no infrastructure imports.
package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// ─── Session ────────────────────────────────────────────────────────────────

// Role selects which of the two front ends a session may use.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBank   Role = "bank"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleBank
}

// Home returns the landing path for the role.
func (r Role) Home() string {
	if r == RoleBank {
		return "/bank/applications"
	}
	return "/farmer/home"
}

// Session is the authenticated viewer of a screen. Every screen receives it
// explicitly instead of inferring the role from the URL.
type Session struct {
	Subject  string    `json:"sub"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	IssuedAt time.Time `json:"iat"`
}

// Actor identifies the session owner in the preview ledger.
func (s Session) Actor() string { return string(s.Role) + ":" + s.Subject }

// ─── Bank Types ─────────────────────────────────────────────────────────────

// LoanApplication is a farmer's pending request for a new credit.
type LoanApplication struct {
	ID             int64          `json:"id"`
	FarmerName     string         `json:"farmer_name"`
	FarmName       string         `json:"farm_name"`
	Amount         float64        `json:"amount"`
	TermMonths     int            `json:"term_months"`
	Purpose        string         `json:"purpose"`
	CreditScore    int            `json:"credit_score"`
	Status         string         `json:"status"`
	CreatedAt      string         `json:"created_at"`
	YieldPotential string         `json:"yield_potential"`
	RiskFactors    []string       `json:"risk_factors"`
	ScoreBreakdown map[string]int `json:"ai_score_breakdown"`
}

// ScoreBar is one labelled bar of the sub-score chart.
type ScoreBar struct {
	Label string
	Score int
}

// BreakdownBars returns the score breakdown ordered by label with scores
// clamped to 0..100, so repeated renders of one record are identical.
func (a LoanApplication) BreakdownBars() []ScoreBar {
	bars := make([]ScoreBar, 0, len(a.ScoreBreakdown))
	for label, score := range a.ScoreBreakdown {
		bars = append(bars, ScoreBar{Label: label, Score: clampPct(score)})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Label < bars[j].Label })
	return bars
}

// LowRisk reports whether no risk factor was flagged.
func (a LoanApplication) LowRisk() bool { return len(a.RiskFactors) == 0 }

// HighScore reports whether the credit score is in the favourable band.
func (a LoanApplication) HighScore() bool { return a.CreditScore >= 700 }

// Initial returns the first letter of the farmer name for the avatar.
func (a LoanApplication) Initial() string {
	for _, r := range a.FarmerName {
		return string(r)
	}
	return "?"
}

// DashboardStats is the bank portfolio overview.
type DashboardStats struct {
	TotalPortfolio      float64 `json:"total_portfolio"`
	ActiveLoans         int     `json:"active_loans"`
	PendingApplications int     `json:"pending_applications"`
	RiskLevel           string  `json:"risk_level"`
}

// ─── Farmer Types ───────────────────────────────────────────────────────────

// FarmerSummary is the debt/credits/score header of the farmer home screen.
type FarmerSummary struct {
	TotalDebt     float64 `json:"total_debt"`
	ActiveCredits int     `json:"active_credits"`
	CreditScore   int     `json:"credit_score"`
	TotalPaid     float64 `json:"total_paid"`
}

// FarmerProfile is the farmer's account record.
type FarmerProfile struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	CreditScore int     `json:"credit_score"`
	FarmName    string  `json:"farm_name"`
	FarmSize    float64 `json:"farm_size"`
	JoinedDate  string  `json:"joined_date"`
}

// UtilityReading is a single meter reading for the farm.
type UtilityReading struct {
	Type  string  `json:"type"` // electricity, gas, water
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Diff  float64 `json:"diff"`
}

// Recommendation is the daily agronomy tip.
type Recommendation struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationType is the two-valued urgency of a notification.
type NotificationType string

const (
	NotificationAlert NotificationType = "alert"
	NotificationInfo  NotificationType = "info"
)

// Notification is a polled, read-only message for the farmer.
type Notification struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`
	Link    string           `json:"link"`
}

// IsAlert reports whether the notification demands action.
func (n Notification) IsAlert() bool { return n.Type == NotificationAlert }

// UnreadCount counts the notifications whose urgency is alert.
func UnreadCount(notes []Notification) int {
	n := 0
	for _, note := range notes {
		if note.IsAlert() {
			n++
		}
	}
	return n
}

// DecodeNotifications decodes a notifications payload. Anything that is not a
// JSON array of notifications yields an empty list rather than an error.
func DecodeNotifications(raw json.RawMessage) []Notification {
	var notes []Notification
	if err := json.Unmarshal(raw, &notes); err != nil || notes == nil {
		return []Notification{}
	}
	return notes
}

// ─── Documents ──────────────────────────────────────────────────────────────

// DocumentRequest asks the server to generate a preview document.
type DocumentRequest struct {
	ApplicationID int64   `json:"application_id"`
	FarmerName    string  `json:"farmer_name"`
	Amount        float64 `json:"amount"`
}

// Document is a server-generated human-readable preview.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ─── Command Payloads ───────────────────────────────────────────────────────

// ReviewDecision is the body of an application review.
type ReviewDecision struct {
	Approved bool `json:"approved"`
}

// LoanRequest is the body of a new loan application.
type LoanRequest struct {
	Amount     float64 `json:"amount"`
	TermMonths int     `json:"term_months"`
	Purpose    string  `json:"purpose"`
}

// PaymentRequest is the body of a loan payment.
type PaymentRequest struct {
	Amount float64 `json:"amount"`
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
