package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/domain"
	"github.com/agrocredit/agrolend/internal/i18n"
	"github.com/agrocredit/agrolend/internal/infra/observability"
)

//go:embed templates
var templateFS embed.FS

// pageNames lists every full page; each is parsed with the layout and partials.
var pageNames = []string{
	"landing",
	"farmer_home",
	"farmer_loans",
	"farmer_apply",
	"farmer_submitted",
	"farmer_notifications",
	"farmer_profile",
	"bank_dashboard",
	"bank_applications",
	"bank_farmers",
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page against cat.
func NewRenderer(cat *i18n.Catalog) (*Renderer, error) {
	funcs := templateFuncs(cat)
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/partials.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Page renders a full page with the layout.
func (r *Renderer) Page(w http.ResponseWriter, status int, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	observability.PageRenders.WithLabelValues(name).Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Partial renders one named block of page into w.
func (r *Renderer) Partial(w io.Writer, page, block string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	return t.ExecuteTemplate(w, block, data)
}

func templateFuncs(cat *i18n.Catalog) template.FuncMap {
	return template.FuncMap{
		"t":    cat.T,
		"lang": cat.Lang,
		"money": func(v float64) string {
			if v == math.Trunc(v) && math.Abs(v) < 1e15 {
				return "$" + humanize.Comma(int64(v))
			}
			return "$" + humanize.FormatFloat("#,###.##", v)
		},
		"count":    func(n int) string { return humanize.Comma(int64(n)) },
		"estimate": domain.EstimateMonthlyPayment,
		"ratePct":  func() float64 { return domain.NominalAnnualRate * 100 },
		"terms":    func() []int { return domain.TermOptions },
		"eqID":     func(a, b int64) bool { return a == b },
	}
}

// ─── Page Data ──────────────────────────────────────────────────────────────

// pageData is what the layout sees. Data is the screen's own view model.
type pageData struct {
	Title   string
	Session domain.Session
	Alert   string
	Notice  string
	Unread  int
	Live    string
	Data    any
}

// newPage builds page data for r, resolving ?alert= and ?notice= keys.
func (s *Server) newPage(r *http.Request, titleKey string, data any) pageData {
	p := pageData{Title: s.cat.T(titleKey), Data: data}
	if sess, err := SessionFrom(r.Context()); err == nil {
		p.Session = sess
	}
	q := r.URL.Query()
	if key := q.Get("alert"); key != "" && s.cat.Has("alert."+key) {
		p.Alert = s.cat.T("alert." + key)
	}
	if key := q.Get("notice"); key != "" && s.cat.Has("notice."+key) {
		p.Notice = s.cat.T("notice." + key)
	}
	return p
}

// render writes a page, logging template failures.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p pageData) {
	if err := s.pages.Page(w, status, name, p); err != nil {
		s.logger.Error("render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
