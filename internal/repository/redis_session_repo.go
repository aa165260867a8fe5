package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mahls/lara-auth/internal/model"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// redisSession はRedisに保存するセッションのシリアライズ形式。
type redisSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CSRFToken string    `json:"csrf_token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// 有効期限はキーのTTLで管理するため、期限切れセッションの掃除は不要。
type RedisSessionRepo struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(rdb *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{rdb: rdb, now: time.Now}
}

// Create はセッションを作成する。TTLはExpiresAtまでの残り時間。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("failed to create session: already expired")
	}

	payload, err := json.Marshal(redisSession{
		ID:        session.ID,
		UserID:    session.UserID,
		CSRFToken: session.CSRFToken,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.rdb.Set(ctx, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
func (r *RedisSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	session := &model.Session{
		ID:        rs.ID,
		UserID:    rs.UserID,
		CSRFToken: rs.CSRFToken,
		ExpiresAt: rs.ExpiresAt,
		CreatedAt: rs.CreatedAt,
	}
	// TTLの失効と時計のずれを考慮して二重に確認する
	if session.Expired(r.now()) {
		return nil, nil
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *RedisSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PingContext はRedisへの疎通を確認する。
func (r *RedisSessionRepo) PingContext(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// compile-time interface check
var (
	_ SessionRepository = (*RedisSessionRepo)(nil)
	_ Pinger            = (*RedisSessionRepo)(nil)
)
