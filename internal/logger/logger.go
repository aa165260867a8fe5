// Package logger はアプリケーション全体のslog設定を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// redactedKeys はログ出力時に値を伏せる属性キー。
var redactedKeys = map[string]bool{
	"password":              true,
	"password_confirmation": true,
	"session_id":            true,
	"csrf_token":            true,
}

const redacted = "[REDACTED]"

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 認証情報に当たる属性は値を伏せて出力する。
func Setup(w io.Writer, level slog.Leveler) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定し、生成したロガーを返す。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, level)
	slog.SetDefault(logger)
	return logger
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[a.Key] {
		return slog.String(a.Key, redacted)
	}
	return a
}
