package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/zaiko/internal/item"
	"github.com/hitoshi/zaiko/internal/middleware"
	"github.com/hitoshi/zaiko/internal/model"
)

// mockItemService はItemServiceInterfaceのモック実装。
type mockItemService struct {
	createFunc func(ctx context.Context, userID int64, input item.CreateInput) (*model.Item, error)
	getFunc    func(ctx context.Context, userID, itemID int64) (*model.Item, error)
	listFunc   func(ctx context.Context, query model.ItemListQuery) (*item.ListResult, error)
	updateFunc func(ctx context.Context, userID, itemID int64, input item.UpdateInput) (*model.Item, error)
	deleteFunc func(ctx context.Context, userID, itemID int64) error
}

var _ ItemServiceInterface = (*mockItemService)(nil)

func (m *mockItemService) Create(ctx context.Context, userID int64, input item.CreateInput) (*model.Item, error) {
	return m.createFunc(ctx, userID, input)
}

func (m *mockItemService) Get(ctx context.Context, userID, itemID int64) (*model.Item, error) {
	return m.getFunc(ctx, userID, itemID)
}

func (m *mockItemService) List(ctx context.Context, query model.ItemListQuery) (*item.ListResult, error) {
	return m.listFunc(ctx, query)
}

func (m *mockItemService) Update(ctx context.Context, userID, itemID int64, input item.UpdateInput) (*model.Item, error) {
	return m.updateFunc(ctx, userID, itemID, input)
}

func (m *mockItemService) Delete(ctx context.Context, userID, itemID int64) error {
	return m.deleteFunc(ctx, userID, itemID)
}

// withUser は認証済みユーザーIDをコンテキストに注入するテスト用ミドルウェアを返す。
func withUser(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.ContextWithUserID(r.Context(), userID)))
		})
	}
}

// newItemTestRouter は商品ハンドラーをマウントしたテスト用ルーターを返す。
func newItemTestRouter(svc ItemServiceInterface, userID int64) http.Handler {
	h := NewItemHandler(svc)
	r := chi.NewRouter()
	if userID != 0 {
		r.Use(withUser(userID))
	}
	r.Route("/api/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Post("/", h.CreateItem)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Put("/", h.UpdateItem)
			r.Delete("/", h.DeleteItem)
		})
	})
	return r
}

func testItem(id, userID int64, name string, price string) *model.Item {
	return &model.Item{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		CreatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateItem_Success(t *testing.T) {
	var capturedUserID int64
	svc := &mockItemService{
		createFunc: func(ctx context.Context, userID int64, input item.CreateInput) (*model.Item, error) {
			capturedUserID = userID
			if input.Name != "トマト" {
				t.Errorf("name = %q, want トマト", input.Name)
			}
			if !input.Price.Equal(decimal.RequireFromString("150.50")) {
				t.Errorf("price = %s, want 150.50", input.Price)
			}
			return testItem(1, userID, input.Name, "150.50"), nil
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodPost, "/api/items",
		strings.NewReader(`{"name": "トマト", "price": "150.50"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if capturedUserID != 42 {
		t.Errorf("userID = %d, want 42", capturedUserID)
	}

	var body itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != 1 {
		t.Errorf("id = %d, want 1", body.ID)
	}
	if !body.Price.Equal(decimal.RequireFromString("150.50")) {
		t.Errorf("price = %s, want 150.50", body.Price)
	}
}

func TestCreateItem_MalformedJSON(t *testing.T) {
	router := newItemTestRouter(&mockItemService{}, 42)

	req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(`{broken`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestCreateItem_ValidationError(t *testing.T) {
	svc := &mockItemService{
		createFunc: func(ctx context.Context, userID int64, input item.CreateInput) (*model.Item, error) {
			return nil, model.NewValidationError("商品名は必須です")
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodPost, "/api/items",
		strings.NewReader(`{"name": "", "price": "100"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if body := decodeAPIError(t, resp); body.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidationFailed)
	}
}

func TestCreateItem_NoAuth_Returns401(t *testing.T) {
	router := newItemTestRouter(&mockItemService{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/items",
		strings.NewReader(`{"name": "a", "price": "1"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if body := decodeAPIError(t, resp); body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
}

func TestGetItem_Success(t *testing.T) {
	svc := &mockItemService{
		getFunc: func(ctx context.Context, userID, itemID int64) (*model.Item, error) {
			if userID != 42 || itemID != 5 {
				t.Errorf("(userID, itemID) = (%d, %d), want (42, 5)", userID, itemID)
			}
			return testItem(5, 42, "きゅうり", "80"), nil
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/items/5", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Name != "きゅうり" {
		t.Errorf("name = %q, want きゅうり", body.Name)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	svc := &mockItemService{
		getFunc: func(ctx context.Context, userID, itemID int64) (*model.Item, error) {
			return nil, model.NewItemNotFoundError(itemID)
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/items/999", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if body := decodeAPIError(t, resp); body.Code != model.ErrCodeItemNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeItemNotFound)
	}
}

func TestGetItem_NonNumericID(t *testing.T) {
	router := newItemTestRouter(&mockItemService{}, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/items/abc", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if body := decodeAPIError(t, resp); body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
}

func TestListItems_PassesQueryParams(t *testing.T) {
	var captured model.ItemListQuery
	svc := &mockItemService{
		listFunc: func(ctx context.Context, query model.ItemListQuery) (*item.ListResult, error) {
			captured = query
			return &item.ListResult{
				Items:    []*model.Item{testItem(1, 42, "トマト", "150")},
				Total:    1,
				Page:     query.Page,
				PageSize: query.PageSize,
			}, nil
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodGet,
		"/api/items?page=2&page_size=10&sort_by=price&sort_order=asc&search=トマト&min_price=100&max_price=500.50", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	if captured.UserID != 42 {
		t.Errorf("userID = %d, want 42", captured.UserID)
	}
	if captured.Page != 2 || captured.PageSize != 10 {
		t.Errorf("(page, page_size) = (%d, %d), want (2, 10)", captured.Page, captured.PageSize)
	}
	if captured.SortBy != model.ItemSortPrice || captured.SortOrder != model.SortAsc {
		t.Errorf("(sort_by, sort_order) = (%s, %s), want (price, asc)", captured.SortBy, captured.SortOrder)
	}
	if captured.Search != "トマト" {
		t.Errorf("search = %q, want トマト", captured.Search)
	}
	if captured.MinPrice == nil || !captured.MinPrice.Equal(decimal.RequireFromString("100")) {
		t.Errorf("min_price = %v, want 100", captured.MinPrice)
	}
	if captured.MaxPrice == nil || !captured.MaxPrice.Equal(decimal.RequireFromString("500.50")) {
		t.Errorf("max_price = %v, want 500.50", captured.MaxPrice)
	}
}

func TestListItems_ResponseShape(t *testing.T) {
	svc := &mockItemService{
		listFunc: func(ctx context.Context, query model.ItemListQuery) (*item.ListResult, error) {
			return &item.ListResult{
				Items:    []*model.Item{testItem(1, 42, "a", "10"), testItem(2, 42, "b", "20")},
				Total:    12,
				Page:     1,
				PageSize: 2,
			}, nil
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	var body itemListResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(body.Items))
	}
	if body.Total != 12 {
		t.Errorf("total = %d, want 12", body.Total)
	}
	if body.Page != 1 || body.PageSize != 2 {
		t.Errorf("(page, page_size) = (%d, %d), want (1, 2)", body.Page, body.PageSize)
	}
}

func TestListItems_InvalidPageParam(t *testing.T) {
	router := newItemTestRouter(&mockItemService{}, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/items?page=abc", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestListItems_InvalidMinPriceParam(t *testing.T) {
	router := newItemTestRouter(&mockItemService{}, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/items?min_price=cheap", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestUpdateItem_PartialUpdate は指定フィールドのみ更新され、
// 未指定フィールドは現在の値が維持されることを検証する。
func TestUpdateItem_PartialUpdate(t *testing.T) {
	desc := "現在の説明"
	current := testItem(5, 42, "現在の名前", "100")
	current.Description = &desc

	var capturedInput item.UpdateInput
	svc := &mockItemService{
		getFunc: func(ctx context.Context, userID, itemID int64) (*model.Item, error) {
			return current, nil
		},
		updateFunc: func(ctx context.Context, userID, itemID int64, input item.UpdateInput) (*model.Item, error) {
			capturedInput = input
			updated := *current
			updated.Price = input.Price
			return &updated, nil
		},
	}
	router := newItemTestRouter(svc, 42)

	// 価格だけ更新
	req := httptest.NewRequest(http.MethodPut, "/api/items/5",
		strings.NewReader(`{"price": "250"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	if capturedInput.Name != "現在の名前" {
		t.Errorf("name = %q, want 現在の名前 (kept)", capturedInput.Name)
	}
	if capturedInput.Description == nil || *capturedInput.Description != "現在の説明" {
		t.Error("description should be kept")
	}
	if !capturedInput.Price.Equal(decimal.RequireFromString("250")) {
		t.Errorf("price = %s, want 250", capturedInput.Price)
	}
}

func TestUpdateItem_NotOwned(t *testing.T) {
	svc := &mockItemService{
		getFunc: func(ctx context.Context, userID, itemID int64) (*model.Item, error) {
			return nil, model.NewItemNotFoundError(itemID)
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodPut, "/api/items/5",
		strings.NewReader(`{"name": "new"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestDeleteItem_Success(t *testing.T) {
	deleted := false
	svc := &mockItemService{
		deleteFunc: func(ctx context.Context, userID, itemID int64) error {
			deleted = true
			if userID != 42 || itemID != 5 {
				t.Errorf("(userID, itemID) = (%d, %d), want (42, 5)", userID, itemID)
			}
			return nil
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodDelete, "/api/items/5", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if !deleted {
		t.Error("Delete should be called")
	}
}

func TestDeleteItem_NotFound(t *testing.T) {
	svc := &mockItemService{
		deleteFunc: func(ctx context.Context, userID, itemID int64) error {
			return model.NewItemNotFoundError(itemID)
		},
	}
	router := newItemTestRouter(svc, 42)

	req := httptest.NewRequest(http.MethodDelete, "/api/items/999", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
