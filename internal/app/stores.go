package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mahls/lara-auth/internal/config"
	"github.com/mahls/lara-auth/internal/database"
	"github.com/mahls/lara-auth/internal/repository"
	"github.com/mahls/lara-auth/internal/worker/cleanup"
	"github.com/redis/go-redis/v9"
)

// connectTimeout は起動時のストア疎通確認のタイムアウト。
const connectTimeout = 5 * time.Second

// stores は設定に応じて構築したユーザーストアとセッションストア。
type stores struct {
	users    repository.UserRepository
	sessions repository.SessionRepository

	// pruner はセッションストアが期限切れ削除に対応する場合のみ非nil。
	pruner cleanup.SessionPruner
	// checks は/healthで疎通確認するストア。
	checks map[string]repository.Pinger

	closers []func() error
}

// Close は開いた接続をすべて閉じる。
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			slog.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}
}

// openStores はUSER_STORE/SESSION_STOREに従ってストアを構築する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{checks: make(map[string]repository.Pinger)}

	var db *sql.DB
	if cfg.UsesPostgres() {
		var err error
		db, err = database.OpenAndPing(ctx, cfg.DatabaseURL, connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st.closers = append(st.closers, db.Close)
		st.checks["postgres"] = db
		slog.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
	}

	switch cfg.UserStore {
	case config.StorePostgres:
		st.users = repository.NewPostgresUserRepo(db)
	default:
		users := repository.NewMemoryUserRepo()
		st.users = users
		st.checks["memory_users"] = users
	}

	switch cfg.SessionStore {
	case config.StorePostgres:
		sessions := repository.NewPostgresSessionRepo(db)
		st.sessions = sessions
		st.pruner = sessions
	case config.StoreRedis:
		sessions, closeFn, err := openRedisSessions(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, closeFn)
		st.sessions = sessions
		st.checks["redis"] = sessions
	default:
		sessions := repository.NewMemorySessionRepo()
		st.sessions = sessions
		st.pruner = sessions
		st.checks["memory_sessions"] = sessions
	}

	slog.Info("stores configured",
		slog.String("user_store", cfg.UserStore),
		slog.String("session_store", cfg.SessionStore),
	)

	return st, nil
}

// openRedisSessions はRedisに接続し、セッションストアを返す。
func openRedisSessions(ctx context.Context, redisURL string) (*repository.RedisSessionRepo, func() error, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	sessions := repository.NewRedisSessionRepo(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sessions.PingContext(pingCtx); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", opts.Addr))
	return sessions, rdb.Close, nil
}
