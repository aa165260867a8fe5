package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mahls/lara-auth/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

func newMockDB(t *testing.T) (*PostgresUserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresUserRepo(db), mock
}

var userColumns = []string{"id", "name", "email", "password_hash", "created_at", "updated_at"}

func TestPostgresUserRepo_FindByID_Found(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("user-1", "A", "a@x.com", "$2a$hash", now, now))

	user, err := repo.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Email != "a@x.com" || user.Name != "A" || user.PasswordHash != "$2a$hash" {
		t.Errorf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUserRepo_FindByID_NotFound_ReturnsNil(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userColumns))

	user, err := repo.FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

func TestPostgresUserRepo_FindByEmail_LowercasesInput(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE lower\(email\) = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("user-1", "A", "a@x.com", "$2a$hash", now, now))

	user, err := repo.FindByEmail(context.Background(), "A@X.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.ID != "user-1" {
		t.Fatalf("expected user-1, got %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUserRepo_FindByEmail_DBError_Wrapped(t *testing.T) {
	repo, mock := newMockDB(t)
	dbErr := errors.New("connection refused")

	mock.ExpectQuery(`FROM users WHERE lower\(email\) = \$1`).
		WillReturnError(dbErr)

	_, err := repo.FindByEmail(context.Background(), "a@x.com")
	if !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped db error, got %v", err)
	}
}

func TestPostgresUserRepo_Create_Inserts(t *testing.T) {
	repo, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("user-1", "A", "a@x.com", "$2a$hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &model.User{
		ID: "user-1", Name: "A", Email: "a@x.com", PasswordHash: "$2a$hash",
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUserRepo_Create_UniqueViolation_ReturnsErrDuplicateEmail(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &model.User{ID: "user-2", Email: "a@x.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestPostgresUserRepo_Create_OtherError_NotDuplicate(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23502", Message: "null value"})

	err := repo.Create(context.Background(), &model.User{ID: "user-3"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrDuplicateEmail) {
		t.Error("not-null violation should not map to ErrDuplicateEmail")
	}
}
