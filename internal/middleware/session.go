// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/skillswap/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// adminContextKey は管理者フラグを格納するためのキー。
	adminContextKey = contextKey("is_admin")
)

// UserResolver はセッションIDまたはアクセストークンから呼び出し元ユーザーを解決する。
// 無効な資格情報の場合はnilを返す。auth.Serviceが満たす。
type UserResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*model.User, error)
	ResolveToken(ctx context.Context, token string) (*model.User, error)
}

// NewSessionMiddleware はCookieのセッションまたはBearerトークンから呼び出し元を解決し、
// ユーザーIDと管理者フラグをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := resolveUser(r, resolver)
			if u == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), u.ID, u.IsAdmin)))
		})
	}
}

// NewOptionalSessionMiddleware は資格情報があれば呼び出し元を解決し、
// なければ未認証のまま次へ渡すミドルウェアを返す。
func NewOptionalSessionMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := resolveUser(r, resolver); u != nil {
				r = r.WithContext(ContextWithUser(r.Context(), u.ID, u.IsAdmin))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin は管理者以外のリクエストに403を返すミドルウェア。
// NewSessionMiddlewareの後に配置する。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdminFromContext(r.Context()) {
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError("管理者のみ利用できます"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolveUser はBearerトークンを優先し、なければセッションCookieで呼び出し元を解決する。
// 解決中のエラーは未認証として扱い、ログに残す。
func resolveUser(r *http.Request, resolver UserResolver) *model.User {
	ctx := r.Context()

	if token := BearerToken(r); token != "" {
		u, err := resolver.ResolveToken(ctx, token)
		if err != nil {
			slog.Error("failed to resolve token", slog.String("error", err.Error()))
			return nil
		}
		return u
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	u, err := resolver.ResolveSession(ctx, cookie.Value)
	if err != nil {
		slog.Error("failed to find session", slog.String("error", err.Error()))
		return nil
	}
	return u
}

// BearerToken はAuthorizationヘッダーのBearerトークンを返す。ない場合は空文字列。
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// IsAdminFromContext は呼び出し元が管理者かを返す。
func IsAdminFromContext(ctx context.Context) bool {
	isAdmin, _ := ctx.Value(adminContextKey).(bool)
	return isAdmin
}

// ContextWithUser はコンテキストにユーザーIDと管理者フラグを注入する。
func ContextWithUser(ctx context.Context, userID string, isAdmin bool) context.Context {
	noteUserID(ctx, userID)
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, adminContextKey, isAdmin)
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
