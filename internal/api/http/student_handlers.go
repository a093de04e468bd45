package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dummy7679/testcraft/internal/quiz"
)

// StudentTestHandler resolves a share link. The path segment is the literal
// test id — the id doubles as the access code, shortened and uppercased only
// for display. The returned view never carries answer keys.
func StudentTestHandler(store quiz.Store) http.HandlerFunc {
	type out struct {
		Test          quiz.Test `json:"test"`
		DisplayCode   string    `json:"display_code"`
		QuestionCount int       `json:"question_count"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		t, err := store.GetTestStudent(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out{
			Test:          t,
			DisplayCode:   DisplayCode(id),
			QuestionCount: len(t.AllQuestions()),
		})
	}
}

// DisplayCode is the short, human-readable form of a test id shown to
// students. Purely cosmetic; the full id is the only real key.
func DisplayCode(testID string) string {
	code := strings.ToUpper(testID)
	if len(code) > 8 {
		code = code[:8]
	}
	return code
}
