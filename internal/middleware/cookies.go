package middleware

import (
	"net/http"
)

const (
	// SessionCookieName はセッションIDを保持するCookieの名前。HttpOnly。
	SessionCookieName = "session_id"

	// CSRFCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	CSRFCookieName = "XSRF-TOKEN"

	// CSRFHeaderName はクライアントがCSRFトークンを送り返すヘッダー名。
	CSRFHeaderName = "X-XSRF-TOKEN"
)

// CookieConfig はCookie発行の設定。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// SetSessionCookie はセッションCookieを設定する。
func SetSessionCookie(w http.ResponseWriter, config CookieConfig, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetCSRFCookie はCSRFトークンCookieを設定する。
func SetCSRFCookie(w http.ResponseWriter, config CookieConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: false, // フロントエンドから読み取り可能
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
