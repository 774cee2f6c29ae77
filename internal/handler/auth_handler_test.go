package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/skillswap/internal/auth"
	"github.com/hitoshi/skillswap/internal/middleware"
	"github.com/hitoshi/skillswap/internal/model"
)

func newTestAuthHandler(svc *mockAuthService) *AuthHandler {
	return NewAuthHandler(svc, &mockUserService{}, AuthHandlerConfig{
		CookieDomain:  "example.com",
		CookieSecure:  true,
		SessionMaxAge: 3600,
	})
}

func TestAuthHandler_Signup_ReturnsSelfViewWithoutHash(t *testing.T) {
	var got auth.SignupInput
	h := newTestAuthHandler(&mockAuthService{
		signupFn: func(ctx context.Context, in auth.SignupInput) (*model.User, error) {
			got = in
			return &model.User{ID: "u-1", Name: in.Name, Email: in.Email, PasswordHash: "$2a$secret", IsPublic: true}, nil
		},
	})

	body := `{"name":"Alice","email":"alice@example.com","password":"correct horse"}`
	w := httptest.NewRecorder()
	h.Signup(w, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if got.Email != "alice@example.com" || got.Password != "correct horse" {
		t.Errorf("input = %+v", got)
	}
	if strings.Contains(w.Body.String(), "secret") || strings.Contains(w.Body.String(), "password") {
		t.Errorf("response leaks password data: %s", w.Body.String())
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["email"] != "alice@example.com" || resp["is_public"] != true {
		t.Errorf("response = %v", resp)
	}
}

func TestAuthHandler_Signup_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"不正なJSON", `{`, nil, http.StatusBadRequest},
		{"メールアドレス重複", `{"email":"a@example.com"}`, model.NewEmailTakenError(), http.StatusConflict},
		{"検証エラー", `{"email":"a@example.com"}`, model.NewValidationError("short"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAuthHandler(&mockAuthService{
				signupFn: func(ctx context.Context, in auth.SignupInput) (*model.User, error) {
					return nil, tt.err
				},
			})
			w := httptest.NewRecorder()
			h.Signup(w, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthHandler_Login_SetsCookieAndReturnsToken(t *testing.T) {
	expires := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	h := newTestAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return &auth.LoginResult{
				User:           &model.User{ID: "u-1"},
				Session:        &model.Session{ID: "sess-1"},
				Token:          "jwt-token",
				TokenExpiresAt: expires,
			}, nil
		},
	})

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"pw"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != "sess-1" {
		t.Fatalf("session cookie = %+v", cookie)
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.MaxAge != 3600 || cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie attributes = %+v", cookie)
	}

	var resp loginResponse
	decodeBody(t, w, &resp)
	if resp.Token != "jwt-token" || !resp.ExpiresAt.Equal(expires) || resp.User.ID != "u-1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	})

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"bad"}`)))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("no cookie should be set on failed login")
	}
	if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q", body.Code)
	}
}

func TestAuthHandler_Logout_ClearsCookieEvenOnError(t *testing.T) {
	var loggedOut string
	h := newTestAuthHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return errors.New("db down")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if loggedOut != "sess-1" {
		t.Errorf("Logout called with %q", loggedOut)
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie should be cleared")
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	h.Me(w, withUserID(httptest.NewRequest(http.MethodGet, "/auth/me", nil), "u-9"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != "u-9" {
		t.Errorf("id = %v, want u-9", resp["id"])
	}
}

func TestAuthHandler_LogoutAll(t *testing.T) {
	var revoked string
	h := newTestAuthHandler(&mockAuthService{
		logoutAllFn: func(ctx context.Context, userID string) error {
			revoked = userID
			return nil
		},
	})

	w := httptest.NewRecorder()
	h.LogoutAll(w, httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	h.LogoutAll(w, withUserID(httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil), "u-3"))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if revoked != "u-3" {
		t.Errorf("LogoutAll called with %q, want u-3", revoked)
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie should be cleared")
	}
}

func TestAuthHandler_LogoutAll_StorageFailure(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{
		logoutAllFn: func(ctx context.Context, userID string) error {
			return errors.New("db down")
		},
	})

	w := httptest.NewRecorder()
	h.LogoutAll(w, withUserID(httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil), "u-3"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Error("internal error detail leaked")
	}
}
