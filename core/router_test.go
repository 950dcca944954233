package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// newAuthRouter wires the full router against an in-memory user store. The
// content repositories are constructed but never reached by these tests.
func newAuthRouter(t *testing.T) (*gin.Engine, *memUserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newMemUserRepo()
	auth := newTestAuthenticator(repo)
	return NewRouter(Config{}, auth, nil), repo
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignupLoginCheckTokenFlow(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/api/authentication/signup",
		`{"username":"bob1","password":"Str0ng!Pass","password_confirmation":"Str0ng!Pass"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}

	w = postJSON(r, "/api/authentication/login",
		`{"username":"bob1","password":"Str0ng!Pass"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
		User  Claim  `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("bad login body: %v", err)
	}
	if login.Token == "" || login.User.Username != "bob1" {
		t.Fatalf("unexpected login payload: %+v", login)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/authentication/check-token", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	cw := httptest.NewRecorder()
	r.ServeHTTP(cw, req)
	if cw.Code != http.StatusOK {
		t.Fatalf("check-token status = %d, want 200 (body %s)", cw.Code, cw.Body.String())
	}
	var check struct {
		User Claim `json:"user"`
	}
	if err := json.Unmarshal(cw.Body.Bytes(), &check); err != nil {
		t.Fatalf("bad check-token body: %v", err)
	}
	if check.User != login.User {
		t.Fatalf("check-token claim %+v != login claim %+v", check.User, login.User)
	}
}

func TestSignupEndpointValidation(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/api/authentication/signup",
		`{"username":"bob1","password":"weak","password_confirmation":"weak"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("weak password status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != "VALIDATION_ERROR" {
		t.Fatalf("code = %q, want VALIDATION_ERROR", code)
	}

	w = postJSON(r, "/api/authentication/signup", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d, want 400", w.Code)
	}
}

func TestSignupEndpointDuplicate(t *testing.T) {
	r, _ := newAuthRouter(t)
	body := `{"username":"alice","password":"Str0ng!Pass","password_confirmation":"Str0ng!Pass"}`

	if w := postJSON(r, "/api/authentication/signup", body); w.Code != http.StatusCreated {
		t.Fatalf("first signup status = %d, want 201", w.Code)
	}
	w := postJSON(r, "/api/authentication/signup", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "USERNAME_TAKEN" {
		t.Fatalf("code = %q, want USERNAME_TAKEN", code)
	}
}

func TestLoginEndpointFailures(t *testing.T) {
	r, _ := newAuthRouter(t)
	postJSON(r, "/api/authentication/signup",
		`{"username":"bob1","password":"Str0ng!Pass","password_confirmation":"Str0ng!Pass"}`)

	w := postJSON(r, "/api/authentication/login", `{"username":"bob1","password":"Wr0ng!Pass"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != "PASSWORD_MISMATCH" {
		t.Fatalf("code = %q, want PASSWORD_MISMATCH", code)
	}

	w = postJSON(r, "/api/authentication/login", `{"username":"ghost","password":"Str0ng!Pass"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want 401", w.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if _, ok := payload["token"]; ok {
		t.Fatal("failed login must not include a token")
	}
}

func TestCheckTokenMalformedHeader(t *testing.T) {
	r, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/authentication/check-token", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if code := errorCode(t, w); code != "MALFORMED_HEADER" {
		t.Fatalf("code = %q, want MALFORMED_HEADER", code)
	}
}
