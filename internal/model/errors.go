package model

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// Messageはクライアントにそのまま返すため、内部情報を含めてはならない。
type APIError struct {
	Status  int    // HTTPステータスコード
	Code    string // エラーコード
	Message string // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// StatusCSRFTokenMismatch はCSRFトークン不一致時のステータスコード。
// 標準のステータスではないが、セッション切れ(401)と区別するために使う。
const StatusCSRFTokenMismatch = 419

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeCSRFTokenMismatch = "CSRF_TOKEN_MISMATCH"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Code:    ErrCodeUnauthorized,
		Message: "Unauthorized",
	}
}

// NewUnauthenticatedError は有効なセッションがない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Code:    ErrCodeUnauthenticated,
		Message: "Unauthenticated.",
	}
}

// NewCSRFMismatchError はCSRFトークンの欠落・不一致エラーを生成する。
// セッションの有無は一切示さない。
func NewCSRFMismatchError() *APIError {
	return &APIError{
		Status:  StatusCSRFTokenMismatch,
		Code:    ErrCodeCSRFTokenMismatch,
		Message: "CSRF token mismatch.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeInternal,
		Message: "Server Error",
	}
}

// ValidationError はフィールド単位のバリデーションエラーを集約する。
// 最初の違反で打ち切らず、全違反をフィールド名ごとに保持する。
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError は空のValidationErrorを生成する。
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add はフィールドにメッセージを追加する。
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Has は指定フィールドに違反があるかどうかを返す。
func (e *ValidationError) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Empty は違反が1件もないかどうかを返す。
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("[%s] invalid fields: %s", ErrCodeValidation, strings.Join(fields, ", "))
}
