package domain

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

// ─── Derived Computations ───────────────────────────────────────────────────

func TestEstimateMonthlyPayment(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		term   int
		want   float64
	}{
		{"one year", 1200, 12, 112},
		{"two years", 5000, 24, 5000 * 1.24 / 24},
		{"quarter", 3000, 3, 3000 * 1.03 / 3},
		{"zero term", 1000, 0, 0},
		{"negative amount", -10, 12, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateMonthlyPayment(tt.amount, tt.term)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateMonthlyPayment(%v, %d) = %v, want %v", tt.amount, tt.term, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"250.50", 250.5, false},
		{" 100 ", 100, false},
		{"0.01", 0.01, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-5", 0, true},
		{"12,5", 0, true},
		{"1e-400", 0, true},
		{"0.000000000000000000001", 0, true},
		{"0.009", 0, true},
		{"1e400", 0, true},
		{"1000000000001", 0, true},
		{"1e3", 1000, false},
		{"1000000000000", 1e12, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateLoanRequest(t *testing.T) {
	tests := []struct {
		name string
		req  LoanRequest
		want error
	}{
		{"valid", LoanRequest{Amount: 5000, TermMonths: 12, Purpose: "Seeds"}, nil},
		{"zero amount", LoanRequest{Amount: 0, TermMonths: 12, Purpose: "Seeds"}, ErrInvalidAmount},
		{"odd term", LoanRequest{Amount: 10, TermMonths: 7, Purpose: "Seeds"}, ErrInvalidTerm},
		{"blank purpose", LoanRequest{Amount: 10, TermMonths: 6, Purpose: "  "}, ErrEmptyPurpose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLoanRequest(tt.req)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

// ─── Notifications ──────────────────────────────────────────────────────────

func TestUnreadCount(t *testing.T) {
	notes := []Notification{
		{ID: "sign_1", Type: NotificationAlert},
		{ID: "active_summary", Type: NotificationInfo},
		{ID: "sign_2", Type: NotificationAlert},
	}
	if got := UnreadCount(notes); got != 2 {
		t.Errorf("UnreadCount() = %d, want 2", got)
	}
	if got := UnreadCount(nil); got != 0 {
		t.Errorf("UnreadCount(nil) = %d, want 0", got)
	}
}

func TestDecodeNotifications(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"array", `[{"id":"a","type":"alert"},{"id":"b","type":"info"}]`, 2},
		{"empty array", `[]`, 0},
		{"null", `null`, 0},
		{"object", `{"detail":"Not Found"}`, 0},
		{"string", `"oops"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeNotifications(json.RawMessage(tt.raw))
			if got == nil {
				t.Fatal("DecodeNotifications returned nil, want non-nil slice")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

// ─── Applications ───────────────────────────────────────────────────────────

func TestLoanApplication_BreakdownBars(t *testing.T) {
	app := LoanApplication{
		ScoreBreakdown: map[string]int{"Market": 90, "Collateral": 85, "History": 140, "Weather": -3},
	}

	first := app.BreakdownBars()
	want := []ScoreBar{
		{"Collateral", 85},
		{"History", 100},
		{"Market", 90},
		{"Weather", 0},
	}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("BreakdownBars() = %v, want %v", first, want)
	}

	for i := 0; i < 5; i++ {
		if again := app.BreakdownBars(); !reflect.DeepEqual(again, first) {
			t.Fatalf("render %d differs: %v vs %v", i, again, first)
		}
	}
}

func TestLoanApplication_Flags(t *testing.T) {
	app := LoanApplication{FarmerName: "Aziz Gofurov", CreditScore: 720}
	if !app.LowRisk() {
		t.Error("no risk factors should be low risk")
	}
	if !app.HighScore() {
		t.Error("720 should be a high score")
	}
	if app.Initial() != "A" {
		t.Errorf("Initial() = %q, want %q", app.Initial(), "A")
	}
	if (LoanApplication{}).Initial() != "?" {
		t.Error("empty name should fall back to ?")
	}
}

// ─── Credits ────────────────────────────────────────────────────────────────

func TestCredit_Actions(t *testing.T) {
	tests := []struct {
		status    CreditStatus
		signable  bool
		payable   bool
		statusKey string
	}{
		{CreditActive, false, true, "status.active"},
		{CreditWaitingSignature, true, false, "status.waiting_signature"},
		{CreditPending, false, false, "status.pending"},
		{CreditStatus("archived"), false, false, "status.other"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			c := Credit{Status: tt.status}
			if c.Signable() != tt.signable {
				t.Errorf("Signable() = %v, want %v", c.Signable(), tt.signable)
			}
			if c.Payable() != tt.payable {
				t.Errorf("Payable() = %v, want %v", c.Payable(), tt.payable)
			}
			if c.StatusKey() != tt.statusKey {
				t.Errorf("StatusKey() = %q, want %q", c.StatusKey(), tt.statusKey)
			}
		})
	}

	if got := (Credit{Progress: 140}).ProgressPct(); got != 100 {
		t.Errorf("ProgressPct() = %d, want 100", got)
	}
}

func TestFarmerRating_Category(t *testing.T) {
	tests := []struct {
		score int
		want  ScoreCategory
	}{
		{85, ScoreHigh},
		{75, ScoreHigh},
		{68, ScoreMedium},
		{42, ScoreLow},
	}
	for _, tt := range tests {
		if got := (FarmerRating{Score: tt.score}).Category(); got != tt.want {
			t.Errorf("Category(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

// ─── Sessions & Previews ────────────────────────────────────────────────────

func TestRole(t *testing.T) {
	if !RoleFarmer.Valid() || !RoleBank.Valid() {
		t.Fatal("known roles should be valid")
	}
	if Role("admin").Valid() {
		t.Error("unknown role should be invalid")
	}
	if RoleBank.Home() != "/bank/applications" {
		t.Errorf("bank home = %q", RoleBank.Home())
	}
	if RoleFarmer.Home() != "/farmer/home" {
		t.Errorf("farmer home = %q", RoleFarmer.Home())
	}
}

func TestPreview_State(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := Preview{ExpiresAt: now.Add(time.Minute)}

	if p.Expired(now) {
		t.Error("preview should not be expired before ExpiresAt")
	}
	if !p.Expired(now.Add(time.Minute)) {
		t.Error("preview should be expired at ExpiresAt")
	}
	if p.Settled() {
		t.Error("fresh preview should not be settled")
	}
	p.ConsumedAt = &now
	if !p.Settled() {
		t.Error("consumed preview should be settled")
	}

	if ReviewCommand(true) != CommandApprove || ReviewCommand(false) != CommandReject {
		t.Error("ReviewCommand mapping is wrong")
	}
	if !CommandApprove.Approves() || CommandReject.Approves() {
		t.Error("Approves() mapping is wrong")
	}
}
