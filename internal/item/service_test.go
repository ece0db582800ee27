package item

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/repository"
)

// mockItemRepo はItemRepositoryのテスト用モック。
type mockItemRepo struct {
	findByIDFunc func(ctx context.Context, id int64) (*model.Item, error)
	listFunc     func(ctx context.Context, query model.ItemListQuery) ([]*model.Item, int, error)
	createFunc   func(ctx context.Context, item *model.Item) error
	updateFunc   func(ctx context.Context, item *model.Item) error
	deleteFunc   func(ctx context.Context, id int64) error
}

func (m *mockItemRepo) FindByID(ctx context.Context, id int64) (*model.Item, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockItemRepo) List(ctx context.Context, query model.ItemListQuery) ([]*model.Item, int, error) {
	return m.listFunc(ctx, query)
}

func (m *mockItemRepo) Create(ctx context.Context, item *model.Item) error {
	return m.createFunc(ctx, item)
}

func (m *mockItemRepo) Update(ctx context.Context, item *model.Item) error {
	return m.updateFunc(ctx, item)
}

func (m *mockItemRepo) Delete(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

var _ repository.ItemRepository = (*mockItemRepo)(nil)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeValidationFailed {
		t.Errorf("expected code %s, got %s", model.ErrCodeValidationFailed, apiErr.Code)
	}
}

func assertItemNotFound(t *testing.T, err error) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeItemNotFound {
		t.Errorf("expected code %s, got %s", model.ErrCodeItemNotFound, apiErr.Code)
	}
}

func TestService_Create_Success(t *testing.T) {
	var created *model.Item
	repo := &mockItemRepo{
		createFunc: func(ctx context.Context, item *model.Item) error {
			item.ID = 1
			created = item
			return nil
		},
	}

	svc := NewService(repo)
	item, err := svc.Create(context.Background(), 10, CreateInput{
		Name:  "ノートPC",
		Price: price("128000.00"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if item.ID != 1 {
		t.Errorf("expected ID 1, got %d", item.ID)
	}
	if created.UserID != 10 {
		t.Errorf("expected owner 10, got %d", created.UserID)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestService_Create_Validation(t *testing.T) {
	repo := &mockItemRepo{
		createFunc: func(ctx context.Context, item *model.Item) error {
			t.Fatal("Create should not reach repository on validation error")
			return nil
		},
	}
	svc := NewService(repo)

	longName := make([]rune, 101)
	for i := range longName {
		longName[i] = 'あ'
	}
	longDesc := make([]rune, 1001)
	for i := range longDesc {
		longDesc[i] = 'い'
	}
	longDescStr := string(longDesc)

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"empty name", CreateInput{Name: "", Price: price("100")}},
		{"name too long", CreateInput{Name: string(longName), Price: price("100")}},
		{"description too long", CreateInput{Name: "ok", Description: &longDescStr, Price: price("100")}},
		{"zero price", CreateInput{Name: "ok", Price: price("0")}},
		{"negative price", CreateInput{Name: "ok", Price: price("-1")}},
		{"price over limit", CreateInput{Name: "ok", Price: price("100000000")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), 1, tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestService_Create_BoundaryValues(t *testing.T) {
	repo := &mockItemRepo{
		createFunc: func(ctx context.Context, item *model.Item) error { return nil },
	}
	svc := NewService(repo)

	// 100文字の名前と0.01の価格は許容される
	name := make([]rune, 100)
	for i := range name {
		name[i] = 'あ'
	}
	if _, err := svc.Create(context.Background(), 1, CreateInput{Name: string(name), Price: price("0.01")}); err != nil {
		t.Errorf("boundary input should be accepted, got %v", err)
	}
}

func TestService_Get_OwnedItem(t *testing.T) {
	repo := &mockItemRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Item, error) {
			return &model.Item{ID: id, UserID: 10, Name: "mine"}, nil
		},
	}

	svc := NewService(repo)
	item, err := svc.Get(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if item.ID != 5 {
		t.Errorf("expected item 5, got %d", item.ID)
	}
}

func TestService_Get_ForeignItemIndistinguishableFromAbsent(t *testing.T) {
	// 他ユーザー所有と不在は同じエラーになる
	repo := &mockItemRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Item, error) {
			if id == 5 {
				return &model.Item{ID: 5, UserID: 99, Name: "someone else's"}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(repo)

	_, errForeign := svc.Get(context.Background(), 10, 5)
	assertItemNotFound(t, errForeign)

	_, errAbsent := svc.Get(context.Background(), 10, 404)
	assertItemNotFound(t, errAbsent)

	var a, b *model.APIError
	errors.As(errForeign, &a)
	errors.As(errAbsent, &b)
	if a.Code != b.Code {
		t.Error("foreign and absent items must yield the same error code")
	}
}

func TestService_List_AppliesDefaults(t *testing.T) {
	var got model.ItemListQuery
	repo := &mockItemRepo{
		listFunc: func(ctx context.Context, query model.ItemListQuery) ([]*model.Item, int, error) {
			got = query
			return nil, 0, nil
		},
	}

	svc := NewService(repo)
	result, err := svc.List(context.Background(), model.ItemListQuery{UserID: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if got.Page != 1 {
		t.Errorf("expected default page 1, got %d", got.Page)
	}
	if got.PageSize != 20 {
		t.Errorf("expected default page size 20, got %d", got.PageSize)
	}
	if got.SortBy != model.ItemSortCreatedAt {
		t.Errorf("expected default sort created_at, got %s", got.SortBy)
	}
	if got.SortOrder != model.SortDesc {
		t.Errorf("expected default order desc, got %s", got.SortOrder)
	}
	if result.Total != 0 {
		t.Errorf("expected total 0, got %d", result.Total)
	}
}

func TestService_List_InvalidParams(t *testing.T) {
	repo := &mockItemRepo{
		listFunc: func(ctx context.Context, query model.ItemListQuery) ([]*model.Item, int, error) {
			t.Fatal("List should not reach repository on validation error")
			return nil, 0, nil
		},
	}
	svc := NewService(repo)

	min := price("500")
	max := price("100")

	tests := []struct {
		name  string
		query model.ItemListQuery
	}{
		{"page below 1", model.ItemListQuery{UserID: 1, Page: -1}},
		{"page size over 100", model.ItemListQuery{UserID: 1, PageSize: 101}},
		{"unknown sort field", model.ItemListQuery{UserID: 1, SortBy: "password"}},
		{"unknown sort order", model.ItemListQuery{UserID: 1, SortOrder: "sideways"}},
		{"min price above max", model.ItemListQuery{UserID: 1, MinPrice: &min, MaxPrice: &max}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.List(context.Background(), tt.query)
			assertValidationError(t, err)
		})
	}
}

func TestService_Update_OwnedItem(t *testing.T) {
	var updated *model.Item
	repo := &mockItemRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Item, error) {
			return &model.Item{ID: id, UserID: 10, Name: "old", Price: price("100")}, nil
		},
		updateFunc: func(ctx context.Context, item *model.Item) error {
			updated = item
			return nil
		},
	}

	svc := NewService(repo)
	item, err := svc.Update(context.Background(), 10, 5, UpdateInput{
		Name:  "new name",
		Price: price("200"),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if item.Name != "new name" {
		t.Errorf("expected updated name, got %s", item.Name)
	}
	if !updated.Price.Equal(price("200")) {
		t.Errorf("expected price 200, got %s", updated.Price)
	}
	if updated.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be refreshed")
	}
}

func TestService_Update_ForeignItem(t *testing.T) {
	repo := &mockItemRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Item, error) {
			return &model.Item{ID: id, UserID: 99}, nil
		},
		updateFunc: func(ctx context.Context, item *model.Item) error {
			t.Fatal("Update should not be called for a foreign item")
			return nil
		},
	}

	svc := NewService(repo)
	_, err := svc.Update(context.Background(), 10, 5, UpdateInput{Name: "x", Price: price("1")})
	assertItemNotFound(t, err)
}

func TestService_Delete_ForeignItem(t *testing.T) {
	repo := &mockItemRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Item, error) {
			return &model.Item{ID: id, UserID: 99}, nil
		},
		deleteFunc: func(ctx context.Context, id int64) error {
			t.Fatal("Delete should not be called for a foreign item")
			return nil
		},
	}

	svc := NewService(repo)
	err := svc.Delete(context.Background(), 10, 5)
	assertItemNotFound(t, err)
}

func TestService_Delete_OwnedItem(t *testing.T) {
	deleted := int64(0)
	repo := &mockItemRepo{
		findByIDFunc: func(ctx context.Context, id int64) (*model.Item, error) {
			return &model.Item{ID: id, UserID: 10}, nil
		},
		deleteFunc: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}

	svc := NewService(repo)
	if err := svc.Delete(context.Background(), 10, 5); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 5 {
		t.Errorf("expected item 5 deleted, got %d", deleted)
	}
}
