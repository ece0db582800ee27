// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/zaiko/internal/auth"
	"github.com/hitoshi/zaiko/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// TokenValidator はセッショントークン検証に必要なインターフェース。
// auth.TokenServiceが実装する。
type TokenValidator interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証する
// ミドルウェアを返す。検証はトークンの署名と有効期限のみで完結し、
// リクエストごとのストレージアクセスは行わない。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// ヘッダー欠落・期限切れ・署名不正はいずれも401を返すが、
// 期限切れだけはTOKEN_EXPIREDコードで区別する（クライアントの再ログイン判断用）。
func NewAuthMiddleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return NewAuthMiddlewareWithMetrics(validator, nil)
}

// NewAuthMiddlewareWithMetrics はNewAuthMiddlewareと同じ検証を行い、
// トークン検証失敗をメトリクスに記録する。metricsはnil可。
func NewAuthMiddlewareWithMetrics(validator TokenValidator, metrics RequestMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			token, ok := extractBearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンを検証
			claims, err := validator.Validate(token)
			if err != nil {
				if metrics != nil {
					metrics.RecordTokenValidationFailure()
				}
				if errors.Is(err, auth.ErrTokenExpired) {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenExpiredError())
				} else {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
				}
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				if metrics != nil {
					metrics.RecordTokenValidationFailure()
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
				return
			}

			// 3. 認証済みユーザーIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// スキーム名は大文字小文字を区別しない。
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok || userID == 0 {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
