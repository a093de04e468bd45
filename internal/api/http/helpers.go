package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dummy7679/testcraft/internal/quiz"
	"github.com/dummy7679/testcraft/internal/session"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto HTTP statuses. Nothing here is fatal to
// the session: out-of-state calls 409, bad references 400/404.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrTestNotFound),
		errors.Is(err, quiz.ErrAttemptNotFound),
		errors.Is(err, quiz.ErrResultNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrUnknownQuestion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		var ve *quiz.ValidationError
		if errors.As(err, &ve) {
			http.Error(w, ve.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
