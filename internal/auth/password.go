package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのデフォルトコスト。
const DefaultBcryptCost = 12

// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const maxPasswordBytes = 72

// PasswordHasher はパスワードの一方向ハッシュと検証のインターフェース。
type PasswordHasher interface {
	// Hash はソルト付きのダイジェストを返す。ソルトはダイジェストに埋め込まれる。
	Hash(plain string) (string, error)
	// Verify は平文がダイジェストに一致するかどうかを返す。
	Verify(plain, digest string) bool
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合は範囲内に丸める。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost は使用しているコストを返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash はパスワードをbcryptでハッシュ化する。呼び出しごとにランダムなソルトを使う。
func (h *BcryptHasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify はダイジェストを再計算して比較する。比較は定数時間で行われる。
func (h *BcryptHasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
