// Package auth はLINEログインによる認証とセッショントークン管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/repository"
)

// IdentityVerifier は外部IdPによる本人確認のインターフェース。
// テストではネットワークを伴わない決定的なフェイクに差し替える。
type IdentityVerifier interface {
	// Verify はアクセストークンを検証し、検証済みユーザー情報を返す。
	Verify(ctx context.Context, accessToken string) (*LineIdentity, error)
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// Metrics は認証サービスが記録するメトリクスのインターフェース。
// metrics.Collectorが実装する。nilの場合は記録しない。
type Metrics interface {
	RecordLoginSuccess(newUser bool)
	RecordLoginFailure(reason string)
	RecordProviderLatency(duration time.Duration)
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	SessionToken string
	ExpiresIn    int // セッショントークンの有効期間（秒）
	User         *model.User
	NewUser      bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider  IdentityVerifier
	userRepo  repository.UserRepository
	auditRepo repository.LoginAuditRepository
	tokens    *TokenService
	metrics   Metrics
}

// NewService はServiceを生成する。
// auditRepoとmetricsはnil可（記録をスキップする）。
func NewService(
	provider IdentityVerifier,
	userRepo repository.UserRepository,
	auditRepo repository.LoginAuditRepository,
	tokens *TokenService,
	metrics Metrics,
) *Service {
	return &Service{
		provider:  provider,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		tokens:    tokens,
		metrics:   metrics,
	}
}

// LoginWithCode は認可コードでログインする（Webコールバックフロー）。
// コードをアクセストークンに交換した後はLoginWithAccessTokenと同じ処理を行う。
func (s *Service) LoginWithCode(ctx context.Context, code string) (*LoginResult, error) {
	if code == "" {
		return nil, model.NewValidationError("認可コードが空です")
	}

	accessToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, s.mapProviderError("exchange_code", err)
	}

	return s.LoginWithAccessToken(ctx, accessToken)
}

// LoginWithAccessToken はLINEアクセストークンでログインする。
// 本人確認 → アカウント解決（冪等upsert） → セッショントークン発行の順で処理する。
// 失敗した場合、リトライは行わない（呼び出し側の判断に委ねる）。
func (s *Service) LoginWithAccessToken(ctx context.Context, accessToken string) (*LoginResult, error) {
	if accessToken == "" {
		return nil, model.NewValidationError("アクセストークンが空です")
	}

	// 1. LINEで本人確認
	start := time.Now()
	identity, err := s.provider.Verify(ctx, accessToken)
	if s.metrics != nil {
		s.metrics.RecordProviderLatency(time.Since(start))
	}
	if err != nil {
		return nil, s.mapProviderError("verify", err)
	}

	// 2. ローカルアカウントの解決（存在すればプロフィール更新、なければ作成）
	user, created, err := s.resolveOrCreate(ctx, identity)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLoginFailure("storage")
		}
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	// 3. セッショントークンを発行
	token, err := s.tokens.Issue(user.ID, user.LineUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	// 4. ログイン監査を記録（ベストエフォート、失敗してもログインは成功させる）
	s.recordAudit(ctx, user, created)

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess(created)
	}

	if created {
		slog.Info("new user logged in",
			slog.Int64("user_id", user.ID),
			slog.String("line_user_id", user.LineUserID),
		)
	} else {
		slog.Info("existing user logged in",
			slog.Int64("user_id", user.ID),
		)
	}

	return &LoginResult{
		SessionToken: token,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
		User:         user,
		NewUser:      created,
	}, nil
}

// CurrentUser は認証済みユーザーIDからユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// resolveOrCreate はLINEユーザーIDでローカルアカウントを解決する。
// 既存アカウントにはプロフィールを上書き反映し（last-write-wins）、
// 未登録の場合は新規作成する。作成が一意制約違反で失敗した場合は
// 同時初回ログインとみなし、既存レコードを再取得して返す（冪等）。
// 戻り値のboolは新規作成されたかどうかを表す。
func (s *Service) resolveOrCreate(ctx context.Context, identity *LineIdentity) (*model.User, bool, error) {
	existing, err := s.userRepo.FindByLineUserID(ctx, identity.LineUserID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user by line_user_id: %w", err)
	}

	now := time.Now()

	if existing != nil {
		// プロフィールを最新の検証済み値で上書き（マージではなく全置換）
		existing.DisplayName = identity.DisplayName
		existing.PictureURL = identity.PictureURL
		existing.UpdatedAt = now
		if err := s.userRepo.UpdateProfile(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("failed to refresh user profile: %w", err)
		}
		return existing, false, nil
	}

	newUser := &model.User{
		LineUserID:  identity.LineUserID,
		DisplayName: identity.DisplayName,
		PictureURL:  identity.PictureURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.userRepo.Create(ctx, newUser)
	if err == nil {
		return newUser, true, nil
	}

	if !errors.Is(err, repository.ErrDuplicateLineUser) {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	// 同時初回ログインで先を越された場合: 作成は破棄し、既存レコードを読み直す
	slog.Info("concurrent first login detected, re-reading existing user",
		slog.String("line_user_id", identity.LineUserID),
	)
	existing, err = s.userRepo.FindByLineUserID(ctx, identity.LineUserID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-read user after conflict: %w", err)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("user disappeared after unique conflict: %s", identity.LineUserID)
	}

	return existing, false, nil
}

// mapProviderError はLINE API呼び出しの失敗をAPIエラーに変換する。
// 失敗の内訳はログとメトリクスにのみ残し、クライアントには
// 到達不能（503）かトークン拒否（401）の2種類だけを返す。
func (s *Service) mapProviderError(step string, err error) error {
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		slog.Error("line api unavailable",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordLoginFailure("provider_unavailable")
		}
		return model.NewProviderUnavailableError()
	case errors.Is(err, ErrInvalidProviderResponse):
		slog.Error("line api returned malformed response",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordLoginFailure("invalid_response")
		}
		return model.NewInvalidProviderTokenError()
	default:
		slog.Warn("line rejected access token",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordLoginFailure("invalid_token")
		}
		return model.NewInvalidProviderTokenError()
	}
}

// recordAudit はログイン監査記録を残す。失敗はログのみで握りつぶす。
func (s *Service) recordAudit(ctx context.Context, user *model.User, newUser bool) {
	if s.auditRepo == nil {
		return
	}

	audit := &model.LoginAudit{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		LineUserID: user.LineUserID,
		NewUser:    newUser,
		LoggedInAt: time.Now(),
	}

	if err := s.auditRepo.Record(ctx, audit); err != nil {
		slog.Warn("failed to record login audit",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
