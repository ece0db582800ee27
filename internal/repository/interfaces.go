// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// ErrDuplicateLineUser はusers.line_user_idの一意制約違反を表す。
// 同一LINEアカウントの同時初回ログインで発生する。呼び出し側は
// このエラーを受けたら既存レコードを再取得する（conflict-then-reread）。
var ErrDuplicateLineUser = errors.New("user with the same line_user_id already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByLineUserID はLINEユーザーIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByLineUserID(ctx context.Context, lineUserID string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDを設定して返す。
	// line_user_idが既に存在する場合はErrDuplicateLineUserを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はプロフィール項目（display_name, picture_url, email）を
	// 上書き更新し、updated_atを更新する。line_user_idは変更しない。
	UpdateProfile(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するitems、posts、login_auditsはCASCADE削除される。
	DeleteByID(ctx context.Context, id int64) error
}

// ItemRepository は商品データの永続化インターフェース。
// 全ての読み書きは所有者（user_id）スコープで行われる。
type ItemRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	// 所有者チェックはサービス層が行うため、ここでは所有者を問わず返す。
	FindByID(ctx context.Context, id int64) (*model.Item, error)

	// List はクエリ条件に合致する商品一覧と総件数を返す。
	// user_idによる絞り込みは必ず適用される。
	List(ctx context.Context, query model.ItemListQuery) ([]*model.Item, int, error)

	// Create は商品を作成し、採番されたIDを設定して返す。
	Create(ctx context.Context, item *model.Item) error

	// Update は商品を上書き更新し、updated_atを更新する。
	Update(ctx context.Context, item *model.Item) error

	// Delete は指定IDの商品を削除する。
	Delete(ctx context.Context, id int64) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// List はクエリ条件に合致する投稿一覧と総件数を返す。
	// user_idによる絞り込みは必ず適用される。
	List(ctx context.Context, query model.PostListQuery) ([]*model.Post, int, error)

	// Create は投稿を作成し、採番されたIDを設定して返す。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿を上書き更新し、updated_atを更新する。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの投稿を削除する。
	Delete(ctx context.Context, id int64) error
}

// LoginAuditRepository はログイン監査記録の永続化インターフェース。
type LoginAuditRepository interface {
	// Record はログインイベントを記録する。
	Record(ctx context.Context, audit *model.LoginAudit) error

	// DeleteOlderThan は指定時刻より古い監査記録を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
