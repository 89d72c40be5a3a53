package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/app/view"
	"github.com/agrocredit/agrolend/internal/domain"
)

// ─── Live Feeds (SSE) ───────────────────────────────────────────────────────
// Each open page holds one stream. The stream's poll loop lives exactly as
// long as the request: a closed tab cancels the context and the loop stops.

var errStreamingUnsupported = errors.New("streaming not supported")

// sseStream writes Server-Sent Events to one client.
type sseStream struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sseStream{w: w, f: f}, nil
}

// Send writes one named event. Multi-line data is split into data: lines.
func (s *sseStream) Send(event string, data []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\n", event)
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	if _, err := buf.WriteTo(s.w); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// handleLoansLive streams the re-rendered loan list every loans interval.
// GET /farmer/loans/live
func (s *Server) handleLoansLive(w http.ResponseWriter, r *http.Request) {
	stream, err := newSSEStream(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	st := view.NewState([]domain.Credit{})
	err = st.Watch(r.Context(), "loans", s.loansInterval, s.backend.Loans, func(snap view.Snapshot[[]domain.Credit]) error {
		if snap.Failed() {
			s.logger.Debug("live loans refresh failed", zap.Error(snap.Err))
		}
		var buf bytes.Buffer
		data := loansView{Loans: snap.Data, Failed: snap.Failed() && snap.LoadedAt.IsZero()}
		if err := s.pages.Partial(&buf, "farmer_loans", "loan_list", data); err != nil {
			return err
		}
		return stream.Send("loans", buf.Bytes())
	})
	if err != nil {
		s.logger.Debug("live loans stream ended", zap.Error(err))
	}
}

type bellEvent struct {
	Unread int `json:"unread"`
	Total  int `json:"total"`
}

// handleNotificationsLive streams the bell count every notifications interval.
// GET /farmer/notifications/live
func (s *Server) handleNotificationsLive(w http.ResponseWriter, r *http.Request) {
	stream, err := newSSEStream(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	st := view.NewState([]domain.Notification{})
	err = st.Watch(r.Context(), "notifications", s.notificationsInterval, s.backend.Notifications, func(snap view.Snapshot[[]domain.Notification]) error {
		payload, err := json.Marshal(bellEvent{
			Unread: domain.UnreadCount(snap.Data),
			Total:  len(snap.Data),
		})
		if err != nil {
			return err
		}
		return stream.Send("bell", payload)
	})
	if err != nil {
		s.logger.Debug("live bell stream ended", zap.Error(err))
	}
}
