package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mahls/lara-auth/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// WriteJSON はステータスコードとJSONボディを書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはAPIErrorが持つ値を使う。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	WriteJSON(w, apiErr.Status, ErrorResponseBody{
		Code:  apiErr.Code,
		Error: apiErr.Message,
	})
}

// WriteValidationError はフィールドごとの違反一覧を422で書き込む。
// ボディは {"field": ["message", ...]} の形式。
func WriteValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	WriteJSON(w, http.StatusUnprocessableEntity, verr.Fields)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError())
}
