package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mahls/lara-auth/internal/repository"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(_ context.Context) error {
	return m.err
}

func TestHealthHandler_AllHealthy_Returns200(t *testing.T) {
	h := NewHealthHandler(map[string]repository.Pinger{
		"postgres": &mockPinger{},
		"redis":    &mockPinger{},
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHealthHandler_StoreDown_Returns503(t *testing.T) {
	h := NewHealthHandler(map[string]repository.Pinger{
		"postgres": &mockPinger{},
		"redis":    &mockPinger{err: errors.New("dial tcp: connection refused")},
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "unavailable" {
		t.Errorf("status = %q, want %q", body.Status, "unavailable")
	}
	if body.Checks["postgres"] != "ok" || body.Checks["redis"] != "unavailable" {
		t.Errorf("checks = %v", body.Checks)
	}
}
