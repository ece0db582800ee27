// Package item は商品の管理機能を提供する。
package item

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/repository"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000

	defaultPageSize = 20
	maxPageSize     = 100
)

// priceLimit はnumeric(10,2)の上限。価格はこの値未満でなければならない。
var priceLimit = decimal.RequireFromString("100000000")

// Service は商品CRUDのサービス層。
// 全ての操作は認証済みユーザーのスコープで行われ、
// 他ユーザー所有の商品は存在しないものとして扱う。
type Service struct {
	itemRepo repository.ItemRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(itemRepo repository.ItemRepository) *Service {
	return &Service{itemRepo: itemRepo}
}

// CreateInput は商品作成の入力。
type CreateInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
}

// UpdateInput は商品更新の入力。全項目を上書きする（部分更新ではない）。
type UpdateInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
}

// ListResult はListの戻り値。
type ListResult struct {
	Items    []*model.Item
	Total    int
	Page     int
	PageSize int
}

// validSortFields は有効なソートフィールドのセット。
var validSortFields = map[model.ItemSortField]bool{
	model.ItemSortName:      true,
	model.ItemSortPrice:     true,
	model.ItemSortCreatedAt: true,
	model.ItemSortUpdatedAt: true,
}

// Create は認証済みユーザーの商品を作成する。
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (*model.Item, error) {
	if err := validateItemInput(input.Name, input.Description, input.Price); err != nil {
		return nil, err
	}

	now := time.Now()
	item := &model.Item{
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

// Get は商品を1件取得する。
// 存在しない場合と他ユーザー所有の場合は、どちらも同じ未検出エラーを返す。
func (s *Service) Get(ctx context.Context, userID, itemID int64) (*model.Item, error) {
	return s.findOwned(ctx, userID, itemID)
}

// List は認証済みユーザーの商品一覧をページネーション・絞り込み付きで返す。
// ページ範囲外のページを指定した場合は空リストを返す（エラーにしない）。
func (s *Service) List(ctx context.Context, query model.ItemListQuery) (*ListResult, error) {
	if err := normalizeListQuery(&query); err != nil {
		return nil, err
	}

	items, total, err := s.itemRepo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Items:    items,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}, nil
}

// Update は商品を全項目上書きで更新する。
func (s *Service) Update(ctx context.Context, userID, itemID int64, input UpdateInput) (*model.Item, error) {
	if err := validateItemInput(input.Name, input.Description, input.Price); err != nil {
		return nil, err
	}

	item, err := s.findOwned(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	item.Name = input.Name
	item.Description = input.Description
	item.Price = input.Price
	item.UpdatedAt = time.Now()

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

// Delete は商品を削除する。
func (s *Service) Delete(ctx context.Context, userID, itemID int64) error {
	item, err := s.findOwned(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.itemRepo.Delete(ctx, item.ID)
}

// findOwned は商品を取得し、所有者が一致することを確認する。
// 不在と所有者不一致は区別せず同一の未検出エラーを返す（存在を漏らさない）。
func (s *Service) findOwned(ctx context.Context, userID, itemID int64) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.UserID != userID {
		return nil, model.NewItemNotFoundError(itemID)
	}
	return item, nil
}

// validateItemInput は商品入力の検証を行う。
func validateItemInput(name string, description *string, price decimal.Decimal) error {
	if name == "" {
		return model.NewValidationError("商品名は必須です")
	}
	if len([]rune(name)) > maxNameLength {
		return model.NewValidationError("商品名は100文字以内で入力してください")
	}
	if description != nil && len([]rune(*description)) > maxDescriptionLength {
		return model.NewValidationError("商品説明は1000文字以内で入力してください")
	}
	if !price.IsPositive() {
		return model.NewValidationError("価格は0より大きい値を指定してください")
	}
	if price.GreaterThanOrEqual(priceLimit) {
		return model.NewValidationError("価格が上限を超えています")
	}
	return nil
}

// normalizeListQuery は一覧クエリにデフォルト値を適用し、検証する。
func normalizeListQuery(query *model.ItemListQuery) error {
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Page < 1 {
		return model.NewValidationError("ページ番号は1以上を指定してください")
	}
	if query.PageSize == 0 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize < 1 || query.PageSize > maxPageSize {
		return model.NewValidationError("ページサイズは1から100の範囲で指定してください")
	}
	if query.SortBy == "" {
		query.SortBy = model.ItemSortCreatedAt
	}
	if !validSortFields[query.SortBy] {
		return model.NewValidationError("無効なソートフィールドです: " + string(query.SortBy))
	}
	if query.SortOrder == "" {
		query.SortOrder = model.SortDesc
	}
	if query.SortOrder != model.SortAsc && query.SortOrder != model.SortDesc {
		return model.NewValidationError("ソート順はascまたはdescを指定してください")
	}
	if query.MinPrice != nil && query.MaxPrice != nil && query.MinPrice.GreaterThan(*query.MaxPrice) {
		return model.NewValidationError("最低価格が最高価格を上回っています")
	}
	return nil
}
