package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dummy7679/testcraft/internal/rbac"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret")

	tok, err := svc.IssueStudentJWT("Eva Green", "ev-42")
	require.NoError(t, err)

	claims, err := svc.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "Eva Green", claims.Name)
	assert.Equal(t, "ev-42", claims.ExternalID)
	assert.Equal(t, "student|ev-42", claims.Sub)

	// a token signed with another key is rejected
	other := NewAuthService("different-secret")
	_, err = other.Parse(tok)
	assert.Error(t, err)
}

func TestLoginHandler(t *testing.T) {
	svc := NewAuthService("test-secret")
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	h := LoginHandler(svc, "admin", string(hash))

	post := func(body map[string]string) *httptest.ResponseRecorder {
		b, _ := json.Marshal(body)
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(b)))
		return rec
	}

	rec := post(map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	claims, err := svc.Parse(out["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "teacher", claims.Role)

	assert.Equal(t, http.StatusUnauthorized, post(map[string]string{"username": "admin", "password": "wrong"}).Code)
	assert.Equal(t, http.StatusUnauthorized, post(map[string]string{"username": "eve", "password": "s3cret"}).Code)
}

func TestStudentLoginHandler(t *testing.T) {
	svc := NewAuthService("test-secret")
	h := StudentLoginHandler(svc)

	b, _ := json.Marshal(map[string]string{"name": "  Eva  ", "external_id": "ev-42"})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/student", bytes.NewReader(b)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	claims, err := svc.Parse(out["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "Eva", claims.Name)

	b, _ = json.Marshal(map[string]string{"name": "", "external_id": "x"})
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/student", bytes.NewReader(b)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWTMiddleware(t *testing.T) {
	svc := NewAuthService("test-secret")
	var gotRole, gotSub string
	var gotClaims *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = rbac.RoleFromContext(r.Context())
		gotSub = rbac.SubjectFromContext(r.Context())
		gotClaims = ClaimsFromContext(r.Context())
	})
	h := JWTMiddleware(svc)(next)

	req := httptest.NewRequest(http.MethodGet, "/tests", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/tests", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := svc.IssueTeacherJWT("alice")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/tests", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "teacher", gotRole)
	assert.Equal(t, "alice", gotSub)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "alice", gotClaims.Sub)
}
