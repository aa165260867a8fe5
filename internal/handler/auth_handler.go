// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mahls/lara-auth/internal/auth"
	"github.com/mahls/lara-auth/internal/middleware"
	"github.com/mahls/lara-auth/internal/model"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 1 << 20

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	Login(ctx context.Context, in auth.LoginInput, priorSessionID string) (*model.Session, *model.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookie  middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookie middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookie:  cookie,
	}
}

// userEnvelope は {"user": {...}} 形式のレスポンス。
type userEnvelope struct {
	User model.PublicUser `json:"user"`
}

// Register はユーザー登録を処理する。
// POST /register
// 登録後にログイン状態にはしない。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		// 解析できないボディは全フィールド未入力として検証する
		slog.Warn("failed to decode register request", slog.String("error", err.Error()))
		in = auth.RegisterInput{}
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, userEnvelope{User: user.Public()})
}

// Login は認証情報を検証し、セッションCookieとローテーションしたCSRFトークンを発行する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteErrorResponse(w, model.NewInvalidCredentialsError())
		return
	}

	// ログイン前のセッションは破棄させる（セッション固定化対策）
	prior := middleware.AuthFromContext(r.Context()).SessionID

	session, user, err := h.service.Login(r.Context(), in, prior)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.SetSessionCookie(w, h.cookie, session.ID)
	middleware.SetCSRFCookie(w, h.cookie, session.CSRFToken)

	middleware.WriteJSON(w, http.StatusOK, userEnvelope{User: user.Public()})
}

// CurrentUser は現在のログインユーザー情報を返す。
// GET /user
// RequireSessionミドルウェアの内側に配置する。
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())
	if !ac.Authenticated() {
		middleware.WriteErrorResponse(w, model.NewUnauthenticatedError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ac.User.Public())
}

// Logout はセッションを破棄し、新しい匿名CSRFトークンを発行する。
// POST /logout
// セッションが既に無効な場合も成功を返す。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac := middleware.AuthFromContext(r.Context())

	if err := h.service.Logout(r.Context(), ac.SessionID); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.ClearSessionCookie(w, h.cookie)
	if err := middleware.IssueAnonymousCSRFCookie(w, h.cookie); err != nil {
		slog.Error("failed to rotate CSRF token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Successfully logged out",
	})
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteValidationError(w, verr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
