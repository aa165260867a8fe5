package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/mahls/lara-auth/internal/model"
	"github.com/mahls/lara-auth/internal/security"
)

// CSRFRecorder はCSRF拒否の記録インターフェース。
type CSRFRecorder interface {
	RecordCSRFRejection(reason string)
}

// CSRF拒否理由のラベル。
const (
	CSRFReasonMissingCookie = "missing_cookie"
	CSRFReasonMissingHeader = "missing_header"
	CSRFReasonMismatch      = "mismatch"
	CSRFReasonSessionToken  = "session_token"
)

// NewCSRFMiddleware はダブルサブミットCookieによるCSRF検証ミドルウェアを返す。
// Cookieとヘッダーの両方にトークンがあり、完全一致する必要がある。
// 有効なセッションがある場合は、ヘッダーがセッションに紐づくトークンとも一致する必要がある。
// 検証失敗時は後続のハンドラーを一切呼び出さずに419を返す。
// AuthContextミドルウェアより後に適用すること。
func NewCSRFMiddleware(recorder CSRFRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := verifyCSRF(r); reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				if recorder != nil {
					recorder.RecordCSRFRejection(reason)
				}
				WriteErrorResponse(w, model.NewCSRFMismatchError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// verifyCSRF はリクエストのCSRFトークンを検証し、失敗理由を返す。成功時は空文字。
func verifyCSRF(r *http.Request) string {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return CSRFReasonMissingCookie
	}

	header := r.Header.Get(CSRFHeaderName)
	if header == "" {
		return CSRFReasonMissingHeader
	}

	if !tokensEqual(cookie.Value, header) {
		return CSRFReasonMismatch
	}

	if auth := AuthFromContext(r.Context()); auth.Authenticated() && !tokensEqual(auth.Session.CSRFToken, header) {
		return CSRFReasonSessionToken
	}

	return ""
}

// tokensEqual はトークンを定数時間で比較する。
func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewCSRFTokenHandler はCSRFトークンCookieを発行するハンドラーを返す。
// GET /csrf-cookie
// 有効なセッションがある場合はセッションに紐づくトークンを再発行し、
// なければ新規の匿名トークンを発行する。ボディは返さない。
func NewCSRFTokenHandler(config CookieConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string

		if auth := AuthFromContext(r.Context()); auth.Authenticated() {
			token = auth.Session.CSRFToken
		} else {
			var err error
			token, err = security.NewToken()
			if err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		SetCSRFCookie(w, config, token)
		w.WriteHeader(http.StatusNoContent)
	})
}

// IssueAnonymousCSRFCookie は新しい匿名CSRFトークンを生成してCookieに設定する。
func IssueAnonymousCSRFCookie(w http.ResponseWriter, config CookieConfig) error {
	token, err := security.NewToken()
	if err != nil {
		return err
	}
	SetCSRFCookie(w, config, token)
	return nil
}
