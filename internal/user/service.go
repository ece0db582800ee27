// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/repository"
)

// defaultAvatarMaxSize はプロフィール画像の最大サイズ（2MB）。
const defaultAvatarMaxSize = 2 * 1024 * 1024

// avatarTimeout はプロフィール画像取得のタイムアウト。
const avatarTimeout = 5 * time.Second

// SSRFValidator はプロフィール画像取得時のSSRF防止インターフェース。
// security.SSRFGuardServiceが実装する。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Avatar は取得済みのプロフィール画像。
type Avatar struct {
	Data     []byte
	MimeType string
}

// Service はユーザー管理のサービス層。
// プロフィール取得、退会処理、プロフィール画像のプロキシ取得を提供する。
type Service struct {
	userRepo      repository.UserRepository
	ssrfGuard     SSRFValidator
	avatarMaxSize int64
}

// NewService はServiceの新しいインスタンスを生成する。
// avatarMaxSizeが0以下の場合は2MBを使用する。
func NewService(userRepo repository.UserRepository, ssrfGuard SSRFValidator, avatarMaxSize int64) *Service {
	if avatarMaxSize <= 0 {
		avatarMaxSize = defaultAvatarMaxSize
	}
	return &Service{
		userRepo:      userRepo,
		ssrfGuard:     ssrfGuard,
		avatarMaxSize: avatarMaxSize,
	}
}

// Get は認証済みユーザーのプロフィールを取得する。
func (s *Service) Get(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// ユーザー本体を削除すると、items、posts、login_auditsはCASCADE削除される。
// 発行済みのセッショントークンは失効しないが、subのユーザーが存在しなくなるため
// 以後の保護リソースへのアクセスは未検出エラーになる。
func (s *Service) Withdraw(ctx context.Context, userID int64) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.Int64("user_id", userID),
	)

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.Int64("user_id", userID),
	)

	return nil
}

// FetchAvatar は認証済みユーザーのプロフィール画像をLINEのCDNから取得する。
// 画像URLは外部入力（IdPの応答）由来であるため、SSRF検証を通してから取得する。
// 画像未設定・取得失敗・サイズ超過・画像以外のContent-Typeは全て
// 同一のエラー（AVATAR_UNAVAILABLE）として返す。
func (s *Service) FetchAvatar(ctx context.Context, userID int64) (*Avatar, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.PictureURL == nil || *user.PictureURL == "" {
		return nil, model.NewAvatarUnavailableError()
	}
	pictureURL := *user.PictureURL

	// SSRF検証
	if s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(pictureURL); err != nil {
			slog.Warn("プロフィール画像取得: SSRFブロック",
				slog.Int64("user_id", userID),
				slog.String("url", pictureURL),
				slog.String("error", err.Error()),
			)
			return nil, model.NewAvatarUnavailableError()
		}
	}

	client := s.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pictureURL, nil)
	if err != nil {
		slog.Warn("プロフィール画像取得: リクエスト作成失敗",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAvatarUnavailableError()
	}
	req.Header.Set("User-Agent", "Zaiko/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("プロフィール画像取得: HTTPリクエスト失敗",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAvatarUnavailableError()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("プロフィール画像取得: HTTPステータス異常",
			slog.Int64("user_id", userID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, model.NewAvatarUnavailableError()
	}

	// レスポンスボディを読み込み（上限+1バイトで超過を検知）
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.avatarMaxSize+1))
	if err != nil {
		slog.Warn("プロフィール画像取得: レスポンス読み取り失敗",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAvatarUnavailableError()
	}

	if int64(len(body)) > s.avatarMaxSize {
		slog.Warn("プロフィール画像取得: サイズ超過",
			slog.Int64("user_id", userID),
			slog.Int("size", len(body)),
		)
		return nil, model.NewAvatarUnavailableError()
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		slog.Warn("プロフィール画像取得: 画像以外のContent-Type",
			slog.Int64("user_id", userID),
			slog.String("content_type", mimeType),
		)
		return nil, model.NewAvatarUnavailableError()
	}

	return &Avatar{Data: body, MimeType: mimeType}, nil
}

// getHTTPClient はHTTPクライアントを取得する。
func (s *Service) getHTTPClient() *http.Client {
	if s.ssrfGuard != nil {
		return s.ssrfGuard.NewSafeClient(avatarTimeout, s.avatarMaxSize)
	}
	return &http.Client{Timeout: avatarTimeout}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
