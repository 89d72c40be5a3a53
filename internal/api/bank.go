package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/app/confirm"
	"github.com/agrocredit/agrolend/internal/app/view"
	"github.com/agrocredit/agrolend/internal/domain"
)

// ─── Dashboard ──────────────────────────────────────────────────────────────

type dashboardView struct {
	Stats  domain.DashboardStats
	Failed bool
}

// handleDashboard shows portfolio stats.
// GET /bank/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := view.NewState(domain.DashboardStats{})
	st.Mount()
	if err := st.Load(r.Context(), s.backend.Dashboard); err != nil {
		s.logger.Warn("dashboard load failed", zap.Error(err))
	}
	snap := st.Snapshot()
	s.render(w, r, http.StatusOK, "bank_dashboard",
		s.newPage(r, "bank.dashboard_title", dashboardView{Stats: snap.Data, Failed: snap.Failed()}))
}

// ─── Applications Queue ─────────────────────────────────────────────────────

type applicationsView struct {
	Applications []domain.LoanApplication
	Failed       bool
	Expanded     int64
	Preview      *domain.Preview
}

// handleApplications renders the pending queue. ?expand=ID opens a card's
// breakdown; ?preview=TOKEN opens the document modal for a shown preview.
// GET /bank/applications
func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := mustSession(r)

	st := view.NewState([]domain.LoanApplication{})
	st.Mount()
	if err := st.Load(ctx, s.backend.Applications); err != nil {
		s.logger.Warn("applications load failed", zap.Error(err))
	}
	snap := st.Snapshot()

	data := &applicationsView{Applications: snap.Data, Failed: snap.Failed()}
	q := r.URL.Query()
	if id, err := strconv.ParseInt(q.Get("expand"), 10, 64); err == nil {
		data.Expanded = id
	}

	p := s.newPage(r, "bank.queue_title", data)
	if token := q.Get("preview"); token != "" {
		pv, err := s.flow.Lookup(ctx, sess, token)
		if err == nil && (pv.Command == domain.CommandApprove || pv.Command == domain.CommandReject) {
			data.Preview = &pv
		} else if p.Alert == "" {
			p.Alert = s.cat.T("alert.preview_invalid")
		}
	}
	s.render(w, r, http.StatusOK, "bank_applications", p)
}

// handleReviewPreview generates the contract or rejection document for an
// application and opens the modal. Nothing is mutated.
// POST /bank/applications/{id}/preview  decision=approve|reject
func (s *Server) handleReviewPreview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	approve, ok := decision(r)
	if !ok {
		http.Error(w, "decision must be approve or reject", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	app, err := s.findApplication(r, id)
	if err != nil {
		s.logger.Warn("review preview lookup failed", zap.Int64("application_id", id), zap.Error(err))
		redirect(w, r, "/bank/applications", "alert", "document_failed")
		return
	}
	pv, err := s.flow.PreviewReview(ctx, mustSession(r), app, approve)
	if err != nil {
		s.logger.Warn("document generation failed", zap.Int64("application_id", id), zap.Error(err))
		redirect(w, r, "/bank/applications", "alert", "document_failed")
		return
	}
	redirect(w, r, "/bank/applications", "preview", pv.Token)
}

// handleReviewConfirm commits the decision behind a shown preview, then
// returns to the queue, which re-fetches.
// POST /bank/applications/{id}/review  token=…&decision=approve|reject
func (s *Server) handleReviewConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	approve, ok := decision(r)
	if !ok {
		http.Error(w, "decision must be approve or reject", http.StatusBadRequest)
		return
	}

	err := s.flow.ConfirmReview(r.Context(), mustSession(r), r.FormValue("token"), id, approve)
	switch {
	case err == nil:
		redirect(w, r, "/bank/applications", "notice", "review_done")
	case confirm.Refused(err):
		redirect(w, r, "/bank/applications", "alert", "preview_invalid")
	default:
		s.logger.Warn("review failed", zap.Int64("application_id", id), zap.Error(err))
		redirect(w, r, "/bank/applications", "alert", "review_failed")
	}
}

// findApplication re-reads the queue so the document request carries the
// server's own farmer name and amount.
func (s *Server) findApplication(r *http.Request, id int64) (domain.LoanApplication, error) {
	apps, err := s.backend.Applications(r.Context())
	if err != nil {
		return domain.LoanApplication{}, err
	}
	for _, a := range apps {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.LoanApplication{}, fmt.Errorf("%w: %d", domain.ErrApplicationNotFound, id)
}

func decision(r *http.Request) (approve, ok bool) {
	switch r.FormValue("decision") {
	case "approve":
		return true, true
	case "reject":
		return false, true
	default:
		return false, false
	}
}

// ─── Farmer Directory ───────────────────────────────────────────────────────

type farmersView struct {
	Farmers  []domain.FarmerRating
	Failed   bool
	Expanded int64
	Credits  *farmerCredits
}

type farmerCredits struct {
	Farmer  domain.FarmerRating
	Credits []domain.Credit
}

// handleFarmers renders the directory. ?expand=ID shows a card's
// justification; ?credits=ID opens the credits modal.
// GET /bank/farmers
func (s *Server) handleFarmers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := view.NewState([]domain.FarmerRating{})
	st.Mount()
	if err := st.Load(ctx, s.directory.Farmers); err != nil {
		s.logger.Warn("directory load failed", zap.Error(err))
	}
	snap := st.Snapshot()

	data := farmersView{Farmers: snap.Data, Failed: snap.Failed()}
	q := r.URL.Query()
	if id, err := strconv.ParseInt(q.Get("expand"), 10, 64); err == nil {
		data.Expanded = id
	}
	if id, err := strconv.ParseInt(q.Get("credits"), 10, 64); err == nil {
		for _, f := range data.Farmers {
			if f.ID != id {
				continue
			}
			credits, err := s.directory.Credits(ctx, id)
			if err != nil {
				s.logger.Warn("directory credits failed", zap.Int64("farmer_id", id), zap.Error(err))
				credits = []domain.Credit{}
			}
			data.Credits = &farmerCredits{Farmer: f, Credits: credits}
		}
	}
	s.render(w, r, http.StatusOK, "bank_farmers", s.newPage(r, "bank.farmers_title", data))
}

// ─── Landing & Session ──────────────────────────────────────────────────────

// handleLanding offers role selection, or forwards a signed-in viewer home.
// GET /
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.sessions.Parse(r); err == nil {
		http.Redirect(w, r, sess.Role.Home(), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "landing", s.newPage(r, "app.name", nil))
}

// handleSessionCreate signs in with a role.
// POST /session  role=farmer|bank&name=…
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	role := domain.Role(r.FormValue("role"))
	sess, err := s.sessions.Issue(w, r.FormValue("name"), role)
	if errors.Is(err, domain.ErrWrongRole) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("issue session failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	s.logger.Info("session started", zap.String("role", string(sess.Role)), zap.String("subject", sess.Subject))
	http.Redirect(w, r, sess.Role.Home(), http.StatusSeeOther)
}

// handleSessionLogout clears the session.
// POST /session/logout
func (s *Server) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
