// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはJSONに出力しない。レスポンスには必ずPublicUserを使う。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser はクライアントに返却してよいユーザー情報の射影。
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public はユーザーの公開射影を返す。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// Session はユーザーのログインセッションを表す。
// CSRFTokenはセッションに1:1で紐づき、ログイン時に発行される。
type Session struct {
	ID        string
	UserID    string
	CSRFToken string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
