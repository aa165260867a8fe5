// Package auth はユーザー登録、パスワード認証、セッション管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mahls/lara-auth/internal/model"
	"github.com/mahls/lara-auth/internal/repository"
	"github.com/mahls/lara-auth/internal/security"
)

// 認証結果のラベル。メトリクスで使用する。
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Recorder は認証イベントの記録インターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordLogout()
}

type nopRecorder struct{}

func (nopRecorder) RecordRegistration(string) {}
func (nopRecorder) RecordLogin(string)        {}
func (nopRecorder) RecordLogout()             {}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	sanitizer   security.NameSanitizer
	validate    *validator.Validate
	recorder    Recorder
	config      ServiceConfig
	now         func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		sanitizer:   security.NewNameSanitizer(),
		validate:    newValidator(),
		recorder:    recorder,
		config:      config,
		now:         time.Now,
	}
}

// Register はユーザーを登録する。
// 違反は全フィールド分を*model.ValidationErrorで返す。登録後に自動ログインはしない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Name = s.sanitizer.Sanitize(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	verr, err := validateRegisterInput(s.validate, in)
	if err != nil {
		s.recorder.RecordRegistration(OutcomeError)
		return nil, err
	}

	// 形式が正しい場合のみ重複を確認する
	if !verr.Has("email") {
		existing, err := s.userRepo.FindByEmail(ctx, in.Email)
		if err != nil {
			s.recorder.RecordRegistration(OutcomeError)
			return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if existing != nil {
			verr.Add("email", emailTakenMessage)
		}
	}

	if !verr.Empty() {
		s.recorder.RecordRegistration(OutcomeInvalid)
		return nil, verr
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.recorder.RecordRegistration(OutcomeError)
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェック後に並行登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			verr.Add("email", emailTakenMessage)
			s.recorder.RecordRegistration(OutcomeInvalid)
			return nil, verr
		}
		s.recorder.RecordRegistration(OutcomeError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.recorder.RecordRegistration(OutcomeSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))

	return user, nil
}

// Login は認証情報を検証し、新しいセッションを発行する。
// priorSessionIDが指定された場合、そのセッションは破棄される（セッション固定化対策）。
// 失敗時はユーザー不在とパスワード不一致を区別しないエラーを返す。
func (s *Service) Login(ctx context.Context, in LoginInput, priorSessionID string) (*model.Session, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		s.recorder.RecordLogin(OutcomeError)
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		// 応答時間でユーザーの存在が判別できないよう、ダミーのダイジェストで検証する
		s.hasher.Verify(in.Password, s.dummy())
		s.recorder.RecordLogin(OutcomeInvalid)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.recorder.RecordLogin(OutcomeInvalid)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.CreateSession(ctx, user.ID, priorSessionID)
	if err != nil {
		s.recorder.RecordLogin(OutcomeError)
		return nil, nil, err
	}

	s.recorder.RecordLogin(OutcomeSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return session, user, nil
}

// CreateSession はセッションを作成し永続化する。
// セッションIDとCSRFトークンは常に新規に生成し、ログイン前の値を再利用しない。
func (s *Service) CreateSession(ctx context.Context, userID, priorSessionID string) (*model.Session, error) {
	if priorSessionID != "" {
		if err := s.sessionRepo.DeleteByID(ctx, priorSessionID); err != nil {
			return nil, fmt.Errorf("failed to invalidate prior session: %w", err)
		}
	}

	sessionID, err := security.NewToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	csrfToken, err := security.NewToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF token: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		CSRFToken: csrfToken,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Resolve はセッションIDから有効なセッションとユーザーを取得する。
// 未ログイン・期限切れ・ユーザー削除済みの場合はいずれもnil, nilを返す（匿名状態）。
func (s *Service) Resolve(ctx context.Context, sessionID string) (*model.Session, *model.User, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Warn("session refers to missing user", slog.String("user_id", session.UserID))
		return nil, nil, nil
	}

	return session, user, nil
}

// Logout はセッションを破棄する。
// セッションが既に存在しない場合も成功として扱う（冪等）。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.Destroy(ctx, sessionID); err != nil {
		return err
	}

	s.recorder.RecordLogout()
	slog.Info("user logged out")
	return nil
}

// Destroy はサーバー側のセッション状態を削除する。
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// dummyPasswordFallback は乱数取得に失敗した場合のダミーパスワード。
const dummyPasswordFallback = "dummy-password-for-timing-comparison"

// dummyPassword はダミーダイジェストの元になるパスワードを返す。
func dummyPassword() string {
	token, err := security.NewToken()
	if err != nil {
		token = dummyPasswordFallback
	}
	return truncateDummy(token)
}

// truncateDummy は最大で maxPasswordBytes/2 バイトに切り詰める。短い入力はそのまま返す。
func truncateDummy(token string) string {
	return token[:min(len(token), maxPasswordBytes/2)]
}

// dummy は存在しないユーザーの検証に使うダイジェストを返す。
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(dummyPassword())
		if err != nil {
			slog.Error("failed to prepare dummy digest", slog.String("error", err.Error()))
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}
