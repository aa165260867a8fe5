package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mahls/lara-auth/internal/model"
)

// MemoryUserRepo はプロセス内メモリを使用したユーザーリポジトリ。
// 開発用およびテスト用。再起動するとデータは失われる。
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string // lower(email) -> id
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

// Create はユーザーを作成する。重複チェックと挿入は同一ロック内で行う。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return ErrDuplicateEmail
	}

	cp := *user
	r.byID[user.ID] = &cp
	r.byEmail[key] = user.ID
	return nil
}

// Count は保持しているユーザー数を返す。テスト用。
func (r *MemoryUserRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// PingContext は常に成功する。
func (r *MemoryUserRepo) PingContext(_ context.Context) error {
	return nil
}

// MemorySessionRepo はプロセス内メモリを使用したセッションリポジトリ。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
// 期限切れエントリの削除は行わない（読み取りは書き込みを伴わない）。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || s.Expired(r.now()) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Count は保持しているセッション数（期限切れを含む）を返す。テスト用。
func (r *MemorySessionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PingContext は常に成功する。
func (r *MemorySessionRepo) PingContext(_ context.Context) error {
	return nil
}

// compile-time interface check
var (
	_ UserRepository    = (*MemoryUserRepo)(nil)
	_ SessionRepository = (*MemorySessionRepo)(nil)
	_ Pinger            = (*MemoryUserRepo)(nil)
	_ Pinger            = (*MemorySessionRepo)(nil)
)
