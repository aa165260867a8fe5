package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mahls/lara-auth/internal/model"
)

func TestMemoryUserRepo_EmailIsCaseInsensitive(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{ID: "u1", Email: "a@x.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.FindByEmail(ctx, "A@X.COM")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("expected u1, got %+v", got)
	}

	err = repo.Create(ctx, &model.User{ID: "u2", Email: "A@x.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
	if repo.Count() != 1 {
		t.Errorf("Count = %d, want 1", repo.Count())
	}
}

func TestMemoryUserRepo_ConcurrentCreate_OnlyOneWins(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, &model.User{ID: string(rune('a' + i)), Email: "same@x.com"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	if repo.Count() != 1 {
		t.Errorf("Count = %d, want 1", repo.Count())
	}
}

func TestMemoryUserRepo_ReturnsCopies(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, &model.User{ID: "u1", Name: "A", Email: "a@x.com"})

	got, _ := repo.FindByID(ctx, "u1")
	got.Name = "mutated"

	again, _ := repo.FindByID(ctx, "u1")
	if again.Name != "A" {
		t.Errorf("stored user was mutated through returned pointer: %q", again.Name)
	}
}

func TestMemorySessionRepo_Lifecycle(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()
	now := time.Now()

	_ = repo.Create(ctx, &model.Session{ID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour)})

	got, err := repo.FindByID(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("expected session, got %v, %v", got, err)
	}

	if err := repo.DeleteByID(ctx, "s1"); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if err := repo.DeleteByID(ctx, "s1"); err != nil {
		t.Fatalf("second DeleteByID: %v", err)
	}

	got, _ = repo.FindByID(ctx, "s1")
	if got != nil {
		t.Error("deleted session must not be resolvable")
	}
}

func TestMemorySessionRepo_ExpiredSessions(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()
	now := time.Now()
	repo.now = func() time.Time { return now }

	_ = repo.Create(ctx, &model.Session{ID: "old", ExpiresAt: now.Add(-time.Minute)})
	_ = repo.Create(ctx, &model.Session{ID: "new", ExpiresAt: now.Add(time.Minute)})

	if got, _ := repo.FindByID(ctx, "old"); got != nil {
		t.Error("expired session must resolve to nil")
	}
	// 読み取りでは削除しない
	if repo.Count() != 2 {
		t.Errorf("Count = %d, want 2", repo.Count())
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if repo.Count() != 1 {
		t.Errorf("Count = %d, want 1", repo.Count())
	}
}
