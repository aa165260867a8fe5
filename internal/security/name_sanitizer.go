// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer はユーザーが入力した表示名からマークアップを除去する。
// bluemondayのStrictPolicyを使用し、全てのタグと属性を取り除いたプレーンテキストを返す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizer は表示名のサニタイズ機能のインターフェースを定義する。
type NameSanitizer interface {
	// Sanitize は入力からHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerの新しいインスタンスを生成する。
func NewNameSanitizer() NameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyは "&" 等をエスケープするため、保存用にアンエスケープしてから返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
