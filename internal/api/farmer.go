package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/app/confirm"
	"github.com/agrocredit/agrolend/internal/app/view"
	"github.com/agrocredit/agrolend/internal/domain"
)

// ─── Home ───────────────────────────────────────────────────────────────────

type homeView struct {
	Summary        domain.FarmerSummary
	Utilities      []domain.UtilityReading
	Recommendation domain.Recommendation
	Failed         bool
}

// handleFarmerHome loads summary, meters and the daily tip as one group.
// GET /farmer/home
func (s *Server) handleFarmerHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := view.NewState(homeView{Utilities: []domain.UtilityReading{}})
	st.Mount()

	var v homeView
	err := view.LoadAll(ctx,
		func(ctx context.Context) (err error) {
			v.Summary, err = s.backend.Summary(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			v.Utilities, err = s.backend.Utilities(ctx)
			return err
		},
		func(ctx context.Context) (err error) {
			v.Recommendation, err = s.backend.LatestRecommendation(ctx)
			return err
		},
	)
	if err != nil {
		s.logger.Warn("farmer home load failed", zap.Error(err))
		st.Fail(err)
	} else {
		st.Set(v)
	}

	snap := st.Snapshot()
	data := snap.Data
	data.Failed = snap.Failed()

	p := s.newPage(r, "nav.home", data)
	p.Unread = s.unread(ctx)
	s.render(w, r, http.StatusOK, "farmer_home", p)
}

// ─── Loans ──────────────────────────────────────────────────────────────────

type loansView struct {
	Loans  []domain.Credit
	Failed bool
	Sign   *domain.Preview
	Pay    *domain.Preview
}

// handleLoans renders the credit list and any open sign/pay modal.
// GET /farmer/loans?sign=TOKEN|pay=TOKEN
func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := mustSession(r)

	st := view.NewState([]domain.Credit{})
	st.Mount()
	if err := st.Load(ctx, s.backend.Loans); err != nil {
		s.logger.Warn("loans load failed", zap.Error(err))
	}
	snap := st.Snapshot()
	data := loansView{Loans: snap.Data, Failed: snap.Failed()}

	p := s.newPage(r, "loans.title", &data)
	q := r.URL.Query()
	if token := q.Get("sign"); token != "" {
		if pv, ok := s.openPreview(ctx, sess, token, domain.CommandSign, &p); ok {
			data.Sign = &pv
		}
	}
	if token := q.Get("pay"); token != "" {
		if pv, ok := s.openPreview(ctx, sess, token, domain.CommandPay, &p); ok {
			data.Pay = &pv
		}
	}
	p.Unread = s.unread(ctx)
	p.Live = "/farmer/loans/live"
	s.render(w, r, http.StatusOK, "farmer_loans", p)
}

// openPreview resolves a modal token for the page. A stale token shows the
// preview_invalid alert instead of a modal.
func (s *Server) openPreview(ctx context.Context, sess domain.Session, token string, cmd domain.Command, p *pageData) (domain.Preview, bool) {
	pv, err := s.flow.Lookup(ctx, sess, token)
	if err == nil && pv.Command == cmd {
		return pv, true
	}
	if p.Alert == "" {
		p.Alert = s.cat.T("alert.preview_invalid")
	}
	return domain.Preview{}, false
}

// handleSignOpen opens the signing modal. No API call is made.
// POST /farmer/loans/{id}/sign/open
func (s *Server) handleSignOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc := domain.Document{Title: s.cat.T("sign.title"), Content: s.cat.T("sign.agreement")}
	pv, err := s.flow.OpenSign(r.Context(), mustSession(r), id, doc)
	if err != nil {
		s.logger.Error("open sign failed", zap.Int64("loan_id", id), zap.Error(err))
		redirect(w, r, "/farmer/loans", "alert", "sign_failed")
		return
	}
	redirect(w, r, "/farmer/loans", "sign", pv.Token)
}

// handleSignConfirm signs the loan behind a shown signing modal.
// POST /farmer/loans/{id}/sign
func (s *Server) handleSignConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := s.flow.ConfirmSign(r.Context(), mustSession(r), r.FormValue("token"), id)
	switch {
	case err == nil:
		redirect(w, r, "/farmer/loans", "notice", "signed")
	case confirm.Refused(err):
		redirect(w, r, "/farmer/loans", "alert", "preview_invalid")
	default:
		s.logger.Warn("sign failed", zap.Int64("loan_id", id), zap.Error(err))
		redirect(w, r, "/farmer/loans", "alert", "sign_failed")
	}
}

// handlePayOpen opens the payment modal.
// POST /farmer/loans/{id}/pay/open
func (s *Server) handlePayOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pv, err := s.flow.OpenPayment(r.Context(), mustSession(r), id)
	if err != nil {
		s.logger.Error("open payment failed", zap.Int64("loan_id", id), zap.Error(err))
		redirect(w, r, "/farmer/loans", "alert", "payment_failed")
		return
	}
	redirect(w, r, "/farmer/loans", "pay", pv.Token)
}

// handlePayConfirm posts a payment. An invalid amount reopens the same modal.
// POST /farmer/loans/{id}/pay
func (s *Server) handlePayConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	token := r.FormValue("token")
	_, err := s.flow.ConfirmPayment(r.Context(), mustSession(r), token, id, r.FormValue("amount"))
	switch {
	case err == nil:
		redirect(w, r, "/farmer/loans", "notice", "payment_success")
	case errors.Is(err, domain.ErrInvalidAmount):
		redirect(w, r, "/farmer/loans", "pay", token, "alert", "invalid_amount")
	case confirm.Refused(err):
		redirect(w, r, "/farmer/loans", "alert", "preview_invalid")
	default:
		s.logger.Warn("payment failed", zap.Int64("loan_id", id), zap.Error(err))
		redirect(w, r, "/farmer/loans", "alert", "payment_failed")
	}
}

// handleCancel dismisses a modal owned by the session, then returns to back.
// POST /{role}/previews/{token}/cancel
func (s *Server) handleCancel(back string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token := chi.URLParam(r, "token")
		if _, err := s.flow.Lookup(ctx, mustSession(r), token); err == nil {
			if err := s.flow.Cancel(ctx, token); err != nil {
				s.logger.Warn("cancel failed", zap.Error(err))
			}
		}
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// ─── New Application ────────────────────────────────────────────────────────

type applyView struct {
	Amount  string
	Term    int
	Purpose string
	Monthly float64
	Credit  domain.Credit
}

// handleApplyForm renders the application form.
// GET /farmer/applications/new
func (s *Server) handleApplyForm(w http.ResponseWriter, r *http.Request) {
	v := applyView{Term: 12}
	s.render(w, r, http.StatusOK, "farmer_apply", s.newPage(r, "apply.title", v))
}

// handleApplySubmit validates and submits a new application.
// POST /farmer/applications
func (s *Server) handleApplySubmit(w http.ResponseWriter, r *http.Request) {
	term, _ := strconv.Atoi(r.FormValue("term_months"))
	v := applyView{
		Amount:  strings.TrimSpace(r.FormValue("amount")),
		Term:    term,
		Purpose: strings.TrimSpace(r.FormValue("purpose")),
	}

	amount, err := domain.ParseAmount(v.Amount)
	req := domain.LoanRequest{Amount: amount, TermMonths: v.Term, Purpose: v.Purpose}
	if err == nil {
		err = domain.ValidateLoanRequest(req)
	}
	if err != nil {
		v.Monthly = domain.EstimateMonthlyPayment(amount, v.Term)
		p := s.newPage(r, "apply.title", v)
		p.Alert = s.cat.T("alert." + validationKey(err))
		s.render(w, r, http.StatusUnprocessableEntity, "farmer_apply", p)
		return
	}

	credit, err := s.backend.CreateLoan(r.Context(), req)
	if err != nil {
		s.logger.Warn("create application failed", zap.Error(err))
		v.Monthly = domain.EstimateMonthlyPayment(amount, v.Term)
		p := s.newPage(r, "apply.title", v)
		p.Alert = s.cat.T("alert.create_failed")
		s.render(w, r, http.StatusBadGateway, "farmer_apply", p)
		return
	}
	v.Credit = credit
	s.render(w, r, http.StatusOK, "farmer_submitted", s.newPage(r, "apply.submitted", v))
}

func validationKey(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTerm):
		return "invalid_term"
	case errors.Is(err, domain.ErrEmptyPurpose):
		return "empty_purpose"
	default:
		return "invalid_amount"
	}
}

// handleEstimate serves the non-binding monthly payment preview.
// GET /farmer/estimate?amount=5000&term=12
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := domain.ParseAmount(q.Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	term, err := strconv.Atoi(q.Get("term"))
	if err != nil || !domain.ValidTerm(term) {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidTerm.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":      amount,
		"term_months": term,
		"rate":        domain.NominalAnnualRate,
		"monthly":     domain.EstimateMonthlyPayment(amount, term),
	})
}

// ─── Notifications & Profile ────────────────────────────────────────────────

type notificationsView struct {
	Notes  []domain.Notification
	Failed bool
}

// handleNotifications lists the farmer's notifications.
// GET /farmer/notifications
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	st := view.NewState([]domain.Notification{})
	st.Mount()
	if err := st.Load(r.Context(), s.backend.Notifications); err != nil {
		s.logger.Warn("notifications load failed", zap.Error(err))
	}
	snap := st.Snapshot()

	p := s.newPage(r, "notifications.title", notificationsView{Notes: snap.Data, Failed: snap.Failed()})
	p.Unread = domain.UnreadCount(snap.Data)
	s.render(w, r, http.StatusOK, "farmer_notifications", p)
}

type profileView struct {
	Profile domain.FarmerProfile
	Failed  bool
}

// handleProfile shows the farmer's account.
// GET /farmer/profile
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	st := view.NewState(domain.FarmerProfile{})
	st.Mount()
	if err := st.Load(r.Context(), s.backend.Profile); err != nil {
		s.logger.Warn("profile load failed", zap.Error(err))
	}
	snap := st.Snapshot()
	p := s.newPage(r, "profile.title", profileView{Profile: snap.Data, Failed: snap.Failed()})
	p.Unread = s.unread(r.Context())
	s.render(w, r, http.StatusOK, "farmer_profile", p)
}

// unread is the bell count. A failed fetch shows zero.
func (s *Server) unread(ctx context.Context) int {
	notes, err := s.backend.Notifications(ctx)
	if err != nil {
		s.logger.Debug("bell load failed", zap.Error(err))
		return 0
	}
	return domain.UnreadCount(notes)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// pathID parses the {id} URL parameter, answering 404 when it is not a number.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

// redirect sends a 303 to path with the given query key/value pairs.
func redirect(w http.ResponseWriter, r *http.Request, path string, kv ...string) {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
