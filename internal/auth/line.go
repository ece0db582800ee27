package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultLineTokenURL   = "https://api.line.me/oauth2/v2.1/token"
	defaultLineVerifyURL  = "https://api.line.me/oauth2/v2.1/verify"
	defaultLineProfileURL = "https://api.line.me/v2/profile"

	defaultLineTimeout = 10 * time.Second
)

// LINE API呼び出しの失敗分類。
// 呼び出し側（サービス層）はこの分類でAPIエラーへのマッピングとログ出力を行う。
var (
	// ErrInvalidProviderToken はLINEがアクセストークンを拒否したことを表す。
	ErrInvalidProviderToken = errors.New("line rejected the access token")
	// ErrProviderUnavailable はLINE APIに到達できなかったことを表す（タイムアウト含む）。
	ErrProviderUnavailable = errors.New("line api unreachable")
	// ErrInvalidProviderResponse は2xxだが応答を解釈できなかったことを表す。
	ErrInvalidProviderResponse = errors.New("malformed line api response")
)

// LineConfig はLINEログインプロバイダーの設定。
type LineConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	TokenURL   string
	VerifyURL  string
	ProfileURL string

	// LINE API呼び出しのタイムアウト。ゼロ値の場合は10秒。
	Timeout time.Duration
}

// LineProvider はLINEログインによる本人確認を提供する。
// ローカル状態は一切変更しない（外部呼び出しのみ）。
type LineProvider struct {
	config LineConfig
	client *http.Client
}

// NewLineProvider はLineProviderを生成する。
func NewLineProvider(config LineConfig) *LineProvider {
	if config.TokenURL == "" {
		config.TokenURL = defaultLineTokenURL
	}
	if config.VerifyURL == "" {
		config.VerifyURL = defaultLineVerifyURL
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultLineProfileURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultLineTimeout
	}
	return &LineProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// LineIdentity はLINEで検証済みのユーザー情報を表す。
type LineIdentity struct {
	LineUserID    string
	DisplayName   string
	PictureURL    *string
	StatusMessage *string
}

// lineTokenResponse はLINEのトークンエンドポイントのレスポンス。
type lineTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// lineVerifyResponse はLINEのトークン検証エンドポイントのレスポンス。
type lineVerifyResponse struct {
	Scope    string `json:"scope"`
	ClientID string `json:"client_id"`
	ExpiresIn int   `json:"expires_in"`
}

// lineProfileResponse はLINEのプロフィールエンドポイントのレスポンス。
type lineProfileResponse struct {
	UserID        string  `json:"userId"`
	DisplayName   string  `json:"displayName"`
	PictureURL    *string `json:"pictureUrl"`
	StatusMessage *string `json:"statusMessage"`
}

// Verify はLINEアクセストークンを検証し、検証済みユーザー情報を取得する。
// トークン検証（client_id照合を含む）→プロフィール取得の2段階で行う。
func (p *LineProvider) Verify(ctx context.Context, accessToken string) (*LineIdentity, error) {
	// 1. アクセストークンの有効性とclient_idを検証
	if err := p.verifyAccessToken(ctx, accessToken); err != nil {
		return nil, err
	}

	// 2. アクセストークンでプロフィールを取得
	profile, err := p.fetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return &LineIdentity{
		LineUserID:    profile.UserID,
		DisplayName:   profile.DisplayName,
		PictureURL:    profile.PictureURL,
		StatusMessage: profile.StatusMessage,
	}, nil
}

// ExchangeCode は認可コードをLINEアクセストークンに交換する。
// Webのコールバックフロー用。モバイル等で直接取得したトークンはVerifyに渡す。
func (p *LineProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURL},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", ErrProviderUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %w", resp.StatusCode, ErrInvalidProviderToken)
	}

	var tokenResp lineTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", ErrInvalidProviderResponse)
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response: %w", ErrInvalidProviderResponse)
	}

	return tokenResp.AccessToken, nil
}

// verifyAccessToken はLINEのトークン検証エンドポイントでアクセストークンを検証する。
// 応答のclient_idが自アプリのチャネルIDと一致しない場合もトークン拒否として扱う。
func (p *LineProvider) verifyAccessToken(ctx context.Context, accessToken string) error {
	verifyURL := p.config.VerifyURL + "?access_token=" + url.QueryEscape(accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create verify request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("verify request failed: %w", ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read verify response: %w", ErrProviderUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token verification failed with status %d: %w", resp.StatusCode, ErrInvalidProviderToken)
	}

	var verifyResp lineVerifyResponse
	if err := json.Unmarshal(body, &verifyResp); err != nil {
		return fmt.Errorf("failed to parse verify response: %w", ErrInvalidProviderResponse)
	}

	if verifyResp.ClientID != p.config.ClientID {
		return fmt.Errorf("client_id mismatch in verify response: %w", ErrInvalidProviderToken)
	}

	return nil
}

// fetchProfile はアクセストークンでLINEのプロフィールを取得する。
func (p *LineProvider) fetchProfile(ctx context.Context, accessToken string) (*lineProfileResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", ErrProviderUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile fetch failed with status %d: %w", resp.StatusCode, ErrInvalidProviderToken)
	}

	var profile lineProfileResponse
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", ErrInvalidProviderResponse)
	}

	if profile.UserID == "" {
		return nil, fmt.Errorf("empty userId in profile response: %w", ErrInvalidProviderResponse)
	}

	return &profile, nil
}

// compile-time interface check
var _ IdentityVerifier = (*LineProvider)(nil)
