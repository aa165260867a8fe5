package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes はセッションIDおよびCSRFトークンのバイト長。
const tokenBytes = 32

// NewToken は暗号的に安全なランダムトークンを16進文字列で返す。
// セッションIDとCSRFトークンの生成に使用する。
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
