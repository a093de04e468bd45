package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dummy7679/testcraft/internal/quiz"
	"github.com/dummy7679/testcraft/internal/rbac"
)

// CreateTestHandler saves a new test authored in the structured editor.
// Flat tests (bare questions) are normalized to a single section on the way
// in; validation failures block the save.
func CreateTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t quiz.Test
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t.ID = "" // ids are server-assigned on create
		t = quiz.Normalize(t)
		if err := t.Validate(); err != nil {
			writeErr(w, err)
			return
		}
		t.CreatedBy = rbac.SubjectFromContext(r.Context())
		if err := store.PutTest(r.Context(), t); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, t)
	}
}

// UpdateTestHandler is the explicit re-save of a shared test.
func UpdateTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		existing, err := store.GetTest(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		var t quiz.Test
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t.ID = id
		t.CreatedBy = existing.CreatedBy
		t.CreatedAt = existing.CreatedAt
		t = quiz.Normalize(t)
		if err := t.Validate(); err != nil {
			writeErr(w, err)
			return
		}
		if err := store.PutTest(r.Context(), t); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, t)
	}
}

// GetTestHandler returns the full test, answer keys included (educator only).
func GetTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetTest(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, t)
	}
}

func DeleteTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteTest(r.Context(), chi.URLParam(r, "testID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListTestsHandler lists the caller's tests.
func ListTestsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListTests(r.Context(), quiz.ListOpts{
			CreatedBy: rbac.SubjectFromContext(r.Context()),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if out == nil {
			out = []quiz.TestSummary{}
		}
		writeJSON(w, out)
	}
}
