package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/mahls/lara-auth/internal/middleware"
	"github.com/mahls/lara-auth/internal/repository"
)

// healthCheckTimeout は各ストアへの疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthHandler はストアの疎通を確認するハンドラー。
type HealthHandler struct {
	checks map[string]repository.Pinger
}

// NewHealthHandler はHealthHandlerを生成する。checksのキーはレスポンスに出す名前。
func NewHealthHandler(checks map[string]repository.Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// ServeHTTP は全ストアが応答すれば200、いずれかが失敗すれば503を返す。
// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].PingContext(ctx); err != nil {
			slog.Error("health check failed",
				slog.String("store", name),
				slog.String("error", err.Error()),
			)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}

	middleware.WriteJSON(w, status, map[string]any{
		"status": overall,
		"checks": results,
	})
}
