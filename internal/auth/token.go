package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// セッショントークン検証の失敗分類。
// 期限切れか否かでクライアントの再認証要否が変わるため、区別して返す。
var (
	// ErrTokenMalformed はトークンをパースできなかったことを表す。
	ErrTokenMalformed = errors.New("session token malformed")
	// ErrTokenSignatureInvalid は署名検証に失敗したことを表す（改ざんまたは鍵不一致）。
	ErrTokenSignatureInvalid = errors.New("session token signature invalid")
	// ErrTokenExpired はトークンの有効期限が切れていることを表す。
	ErrTokenExpired = errors.New("session token expired")
)

// TokenConfig はセッショントークンの署名設定。
type TokenConfig struct {
	// Secret はHS256署名鍵。空の場合はNewTokenServiceがエラーを返す。
	Secret string
	// TTL はトークンの有効期間。
	TTL time.Duration
}

// Claims はセッショントークンに署名対象として埋め込むクレーム。
// sub（ユーザーID）、iat、expの3項目が検証の対象であり、
// line_user_idは参照用の補助情報として含める。
type Claims struct {
	LineUserID string `json:"line_user_id"`
	jwt.RegisteredClaims
}

// UserID はsubクレームをユーザーIDとして解釈する。
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject in token: %w", ErrTokenMalformed)
	}
	return id, nil
}

// TokenService はセッショントークンの発行と検証を提供する。
// 状態を持たず、同一入力と同一時刻に対して常に同一の結果を返す。
// 検証はトークン自身の署名済みフィールドのみで完結し、ストレージは参照しない。
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService はTokenServiceを生成する。
// 署名鍵が未設定、またはTTLが0以下の場合は設定エラーを返す。
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("token signing secret is not configured")
	}
	if config.TTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive, got %v", config.TTL)
	}
	return &TokenService{
		secret: []byte(config.Secret),
		ttl:    config.TTL,
	}, nil
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue は指定ユーザーのセッショントークンを発行する。
// iat=現在時刻、exp=iat+TTLをHS256で署名する。I/Oや共有状態は持たない。
func (s *TokenService) Issue(userID int64, lineUserID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		LineUserID: lineUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Validate はセッショントークンを検証し、クレームを返す。
// 署名検証と期限チェックのみを行い、ユーザーの実在確認はしない。
// subはあくまで識別子であり、プロフィール情報が必要な場合は
// 呼び出し側がユーザーを再取得する。
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	if !token.Valid {
		return nil, ErrTokenSignatureInvalid
	}

	return claims, nil
}
