// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/zaiko/internal/auth"
	"github.com/hitoshi/zaiko/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// LoginWithCode は認可コードでログインする（Webコールバックフロー）。
	LoginWithCode(ctx context.Context, code string) (*auth.LoginResult, error)
	// LoginWithAccessToken はLINEアクセストークンでログインする。
	LoginWithAccessToken(ctx context.Context, accessToken string) (*auth.LoginResult, error)
}

// TokenVerifier はセッショントークン検証のインターフェース。
// auth.TokenServiceが実装する。
type TokenVerifier interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// AuthHandler はLINEログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	verifier TokenVerifier
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, verifier TokenVerifier) *AuthHandler {
	return &AuthHandler{
		service:  service,
		verifier: verifier,
	}
}

// --- リクエスト・レスポンス型 ---

// lineCallbackRequest はWebコールバックフローのリクエストボディ。
type lineCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state,omitempty"`
}

// lineTokenRequest はアクセストークン直接ログインのリクエストボディ。
type lineTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// accountResponse はログインレスポンスに含まれるアカウント情報。
type accountResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       *string   `json:"email,omitempty"`
	PictureURL  *string   `json:"picture_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	SessionToken string          `json:"session_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"`
	Account      accountResponse `json:"account"`
}

// verifyTokenResponse はトークン検証成功時のレスポンス。
type verifyTokenResponse struct {
	Valid      bool      `json:"valid"`
	UserID     int64     `json:"user_id"`
	LineUserID string    `json:"line_user_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LineCallback はWebコールバックフローのログインを処理する。
// POST /api/auth/line/callback
func (h *AuthHandler) LineCallback(w http.ResponseWriter, r *http.Request) {
	var req lineCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.Code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("認可コードは必須です"))
		return
	}

	result, err := h.service.LoginWithCode(r.Context(), req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeLoginResponse(w, result)
}

// LineToken はLINEアクセストークンによる直接ログインを処理する。
// POST /api/auth/line/token
func (h *AuthHandler) LineToken(w http.ResponseWriter, r *http.Request) {
	var req lineTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.AccessToken == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("アクセストークンは必須です"))
		return
	}

	result, err := h.service.LoginWithAccessToken(r.Context(), req.AccessToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeLoginResponse(w, result)
}

// VerifyToken は提示されたセッショントークンを検証し、クレームを返す。
// POST /api/auth/verify
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	claims, err := h.verifier.Validate(strings.TrimSpace(parts[1]))
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenExpiredError())
			return
		}
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
		return
	}

	userID, err := claims.UserID()
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verifyTokenResponse{
		Valid:      true,
		UserID:     userID,
		LineUserID: claims.LineUserID,
		ExpiresAt:  claims.ExpiresAt.Time,
	})
}

// writeLoginResponse はログイン成功レスポンスを書き込む。
func writeLoginResponse(w http.ResponseWriter, result *auth.LoginResult) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		SessionToken: result.SessionToken,
		TokenType:    "bearer",
		ExpiresIn:    result.ExpiresIn,
		Account:      toAccountResponse(result.User),
	})
}

// toAccountResponse はmodel.Userからアカウントレスポンスに変換する。
func toAccountResponse(user *model.User) accountResponse {
	return accountResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		PictureURL:  user.PictureURL,
		CreatedAt:   user.CreatedAt,
	}
}

// --- ヘルパー関数 ---

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// invalidRequestBodyError はリクエストボディが解析できない場合のエラーを生成する。
func invalidRequestBodyError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidProviderToken:
		return http.StatusUnauthorized
	case model.ErrCodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeTokenExpired, model.ErrCodeTokenInvalid, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeItemNotFound, model.ErrCodePostNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeAvatarUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
