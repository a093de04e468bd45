package http

import (
	"net/http"

	authmw "github.com/dummy7679/testcraft/internal/auth/middleware"
	"github.com/dummy7679/testcraft/internal/quiz"
	"github.com/dummy7679/testcraft/internal/rbac"
)

// ListAttemptsHandler pages through attempts. Teachers see every attempt
// and may filter by test or student; students only ever see their own.
func ListAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := quiz.AttemptListOpts{
			TestID:  q.Get("test_id"),
			Status:  q.Get("status"),
			Limit:   parseIntDefault(q.Get("limit"), 50),
			Offset:  parseIntDefault(q.Get("offset"), 0),
			Student: q.Get("student"),
		}
		if opts.Limit < 1 || opts.Limit > 200 {
			opts.Limit = 50
		}

		role := rbac.RoleFromContext(r.Context())
		if !rbac.Can(role, "attempt:view-all") {
			claims := authmw.ClaimsFromContext(r.Context())
			if claims == nil || claims.ExternalID == "" {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			opts.Student = claims.ExternalID
		}

		attempts, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		if attempts == nil {
			attempts = []quiz.Attempt{}
		}
		writeJSON(w, map[string]any{
			"attempts": attempts,
			"limit":    opts.Limit,
			"offset":   opts.Offset,
		})
	}
}
