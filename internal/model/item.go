package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item はユーザーが所有する商品を表す。
// 各Itemは必ず1人のユーザー（UserID）に属する。
type Item struct {
	ID          int64
	UserID      int64
	Name        string
	Description *string
	Price       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemSortField は商品一覧のソート対象フィールドを表す。
type ItemSortField string

const (
	ItemSortName      ItemSortField = "name"
	ItemSortPrice     ItemSortField = "price"
	ItemSortCreatedAt ItemSortField = "created_at"
	ItemSortUpdatedAt ItemSortField = "updated_at"
)

// SortOrder はソート順を表す。
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ItemListQuery は商品一覧のページネーション・絞り込み条件。
// 所有者（UserID）での絞り込みはリポジトリ層で必ず適用される。
type ItemListQuery struct {
	UserID    int64
	Page      int
	PageSize  int
	SortBy    ItemSortField
	SortOrder SortOrder
	Search    string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
}

// Offset はSQLのOFFSET値を返す。
func (q ItemListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}
