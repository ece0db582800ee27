// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, item, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidProviderToken = "INVALID_PROVIDER_TOKEN"
	ErrCodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid         = "TOKEN_INVALID"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeItemNotFound         = "ITEM_NOT_FOUND"
	ErrCodePostNotFound         = "POST_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeAvatarUnavailable    = "AVATAR_UNAVAILABLE"
)

// NewInvalidProviderTokenError はLINEアクセストークンが拒否された場合のエラーを生成する。
// 検証失敗の内訳（トークン拒否・応答不正）はログにのみ残し、クライアントには同一コードを返す。
func NewInvalidProviderTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProviderToken,
		Message:  "LINEアカウントの認証に失敗しました。",
		Category: "auth",
		Action:   "LINEログインをやり直してください。",
	}
}

// NewProviderUnavailableError はLINE APIに到達できない場合のエラーを生成する。
func NewProviderUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnavailable,
		Message:  "LINEの認証サービスに接続できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTokenExpiredError はセッショントークンの期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewTokenInvalidError はセッショントークンが不正な場合のエラーを生成する。
// 署名不一致とパース不能はクライアントには区別せず同一コードで返す。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "セッショントークンが不正です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewUnauthorizedError は認証情報が提示されていない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewItemNotFoundError は商品未検出エラーを生成する。
// 他ユーザー所有の商品へのアクセスも同一のエラーになる（存在を漏らさない）。
func NewItemNotFoundError(itemID int64) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %d", itemID),
		Category: "item",
		Action:   "商品IDを確認してください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
// 他ユーザー所有の投稿へのアクセスも同一のエラーになる（存在を漏らさない）。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %d", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAvatarUnavailableError はプロフィール画像が取得できない場合のエラーを生成する。
func NewAvatarUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAvatarUnavailable,
		Message:  "プロフィール画像を取得できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
