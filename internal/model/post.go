package model

import "time"

// Post はユーザーが所有する投稿を表す。
// ContentはサニタイズされたHTMLとして保存される。
type Post struct {
	ID        int64
	UserID    int64
	Title     string
	Content   *string
	Published bool
	Location  *string // geohash（最大12文字）
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostListQuery は投稿一覧のページネーション・絞り込み条件。
type PostListQuery struct {
	UserID   int64
	Page     int
	PageSize int
	// Publishedがnilの場合は公開・非公開の両方を返す。
	Published *bool
}

// Offset はSQLのOFFSET値を返す。
func (q PostListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}
