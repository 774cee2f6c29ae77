package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/skillswap/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfCookieTTL  = 24 * time.Hour
	csrfTokenBytes  = 32
)

// csrfFailure はダブルサブミット検証が失敗した理由。
type csrfFailure string

const (
	csrfOK            csrfFailure = ""
	csrfMissingCookie csrfFailure = "missing_cookie"
	csrfMissingHeader csrfFailure = "missing_header"
	csrfMismatch      csrfFailure = "mismatch"
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF検証ミドルウェアを返す。
//
//   - GET, HEAD, OPTIONSは検証せず、Cookieが無ければトークンを発行する
//   - Bearerトークンで認証するリクエストはブラウザが自動送信しないため検証しない
//   - それ以外はCookieとX-CSRF-Tokenヘッダーの一致を必須とする
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := config.tokenFor(w, r); err != nil {
					slog.Error("failed to issue CSRF token", slog.String("error", err.Error()))
				}
				next.ServeHTTP(w, r)
				return
			}

			if BearerToken(r) != "" {
				next.ServeHTTP(w, r)
				return
			}

			if reason := checkDoubleSubmit(r); reason != csrfOK {
				slog.Warn("CSRF validation failed",
					slog.String("reason", string(reason)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				writeCSRFError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
// 既存のCSRFトークンCookieがある場合はそれを返し、なければ新規発行する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := config.tokenFor(w, r)
		if err != nil {
			slog.Error("failed to issue CSRF token", slog.String("error", err.Error()))
			WriteInternalServerError(w)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"token": token}); err != nil {
			slog.Error("failed to encode CSRF token", slog.String("error", err.Error()))
		}
	})
}

// tokenFor はリクエストのCSRFトークンを返す。Cookieが無いか空の場合は新規発行してSet-Cookieする。
func (c CSRFConfig) tokenFor(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.CookieDomain,
		MaxAge:   int(csrfCookieTTL / time.Second),
		HttpOnly: false,
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// checkDoubleSubmit はCookieとヘッダーのトークンを定数時間で比較する。
func checkDoubleSubmit(r *http.Request) csrfFailure {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return csrfMissingCookie
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return csrfMissingHeader
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return csrfMismatch
	}
	return csrfOK
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func writeCSRFError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
		Code:     "CSRF_TOKEN_INVALID",
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: model.ErrCategoryAuthorization,
		Action:   "ページを再読み込みしてから再度お試しください。",
	})
}
