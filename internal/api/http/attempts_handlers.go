package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/dummy7679/testcraft/internal/auth/middleware"
	"github.com/dummy7679/testcraft/internal/monitor"
	"github.com/dummy7679/testcraft/internal/quiz"
	"github.com/dummy7679/testcraft/internal/session"
)

// BeginAttemptHandler starts a timed session. The student identity comes
// from the token claims; the request only names the test.
func BeginAttemptHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestID string `json:"test_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.TestID == "" {
			http.Error(w, "test_id required", http.StatusBadRequest)
			return
		}
		claims := authmw.ClaimsFromContext(r.Context())
		if claims == nil || claims.Name == "" || claims.ExternalID == "" {
			http.Error(w, "student identity required", http.StatusForbidden)
			return
		}
		a, err := mgr.Begin(r.Context(), req.TestID, quiz.StudentIdentity{
			Name:       claims.Name,
			ExternalID: claims.ExternalID,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, attemptView(mgr, a))
	}
}

// RecordAnswerHandler saves one answer; repeated saves overwrite.
func RecordAnswerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			QuestionID string `json:"question_id"`
			Value      any    `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		a, err := mgr.Answer(r.Context(), id, req.QuestionID, req.Value)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, attemptView(mgr, a))
	}
}

// AdvanceHandler moves to the next section, or submits on the last one.
func AdvanceHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := mgr.Advance(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, attemptView(mgr, a))
	}
}

// ContinueHandler acknowledges the between-sections screen.
func ContinueHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := mgr.Continue(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, attemptView(mgr, a))
	}
}

// ViolationHandler receives integrity signals from the proctoring client.
// Duplicate or post-terminal signals are acknowledged and discarded.
func ViolationHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var sig monitor.Signal
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			// A proctoring client in a failing state may not manage a clean
			// payload; fail closed and count the signal anyway.
			sig = monitor.Signal{Kind: monitor.KindMonitorFailure}
		}
		if sig.Kind == "" {
			sig.Kind = "unspecified"
		}
		sig.AttemptID = id
		sig.At = time.Now()
		a, err := mgr.Violation(r.Context(), id, sig.Kind+": "+sig.Detail)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, attemptView(mgr, a))
	}
}

// GetAttemptHandler returns live state (including the countdown) while the
// session runs, or the persisted record afterwards.
func GetAttemptHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := mgr.Get(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, attemptView(mgr, a))
	}
}

// GetResultHandler returns the finalized result of an attempt.
func GetResultHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := mgr.ResultFor(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}

type attemptPayload struct {
	quiz.Attempt
	DisplayOrder []string `json:"display_order,omitempty"`
}

// attemptView decorates an attempt with the current section's display order
// so the UI renders shuffled sections consistently across reloads.
func attemptView(mgr *session.Manager, a quiz.Attempt) attemptPayload {
	p := attemptPayload{Attempt: a}
	if !a.Status.Terminal() {
		if order, err := mgr.DisplayOrder(a.ID); err == nil {
			p.DisplayOrder = order
		}
	}
	return p
}
