// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mahls/lara-auth/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// authContextKey はリクエストコンテキストにAuthContextを格納するためのキー。
var authContextKey = contextKey("auth")

// AuthContext はリクエストごとに一度だけ解決される認証状態。
// Session/Userがnilの場合は匿名状態を表す。
type AuthContext struct {
	// SessionID はCookieに含まれていた生の値。有効かどうかは問わない。
	SessionID string
	Session   *model.Session
	User      *model.User
}

// Authenticated は有効なセッションが解決されたかどうかを返す。
func (a *AuthContext) Authenticated() bool {
	return a != nil && a.Session != nil && a.User != nil
}

// SessionResolver はセッションIDから認証状態を解決するインターフェース。
// auth.Serviceが実装する。
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (*model.Session, *model.User, error)
}

// NewAuthContextMiddleware はCookieからセッションを読み取り、
// 解決した認証状態をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストも匿名状態として通過させる。
func NewAuthContextMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := &AuthContext{}

			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				auth.SessionID = cookie.Value

				session, user, err := resolver.Resolve(r.Context(), cookie.Value)
				if err != nil {
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				auth.Session = session
				auth.User = user
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), auth)))
		})
	}
}

// NewRequireSessionMiddleware は有効なセッションがないリクエストに
// 401 Unauthenticatedを返すミドルウェアを返す。
func NewRequireSessionMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !AuthFromContext(r.Context()).Authenticated() {
				WriteErrorResponse(w, model.NewUnauthenticatedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthFromContext はリクエストコンテキストから認証状態を取得する。
// 未設定の場合は匿名状態を返す。
func AuthFromContext(ctx context.Context) *AuthContext {
	if auth, ok := ctx.Value(authContextKey).(*AuthContext); ok && auth != nil {
		return auth
	}
	return &AuthContext{}
}

// ContextWithAuth はコンテキストに認証状態を注入する。
func ContextWithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーのIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	auth := AuthFromContext(ctx)
	if !auth.Authenticated() {
		return "", fmt.Errorf("user ID not found in context")
	}
	return auth.User.ID, nil
}
