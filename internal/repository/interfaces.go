// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/mahls/lara-auth/internal/model"
)

// ErrDuplicateEmail は同一メールアドレスのユーザーが既に存在する場合のエラー。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータ（認証情報ストア）の永続化インターフェース。
// メールアドレスは大文字小文字を区別せず一意とする。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返し、レコードを作成しない。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 実装は同時アクセスに安全でなければならない。
// FindByIDは書き込みを伴ってはならない（削除済みセッションを復活させないため）。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
}

// Pinger はストアの疎通確認インターフェース。ヘルスチェックで使用する。
type Pinger interface {
	PingContext(ctx context.Context) error
}
