package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/zaiko/internal/item"
	"github.com/hitoshi/zaiko/internal/middleware"
	"github.com/hitoshi/zaiko/internal/model"
)

// ItemServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	Create(ctx context.Context, userID int64, input item.CreateInput) (*model.Item, error)
	Get(ctx context.Context, userID, itemID int64) (*model.Item, error)
	List(ctx context.Context, query model.ItemListQuery) (*item.ListResult, error)
	Update(ctx context.Context, userID, itemID int64, input item.UpdateInput) (*model.Item, error)
	Delete(ctx context.Context, userID, itemID int64) error
}

// ItemHandler は商品管理のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// createItemRequest は商品作成リクエストのボディ。
type createItemRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// updateItemRequest は商品更新リクエストのボディ。
// nilのフィールドは現在の値を維持する（部分更新）。
type updateItemRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

// itemResponse は商品情報のAPIレスポンス。価格は文字列でシリアライズされる。
type itemResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// itemListResponse は商品一覧のレスポンス。
type itemListResponse struct {
	Items    []itemResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// CreateItem は商品を作成する。
// POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	created, err := h.service.Create(r.Context(), userID, item.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toItemResponse(created))
}

// GetItem は商品詳細を取得する。
// GET /api/items/:id
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	itemID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), userID, itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(found))
}

// ListItems は商品一覧をページネーション・絞り込み付きで取得する。
// GET /api/items?page=1&page_size=20&sort_by=created_at&sort_order=desc&search=xxx&min_price=100&max_price=5000
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	query, err := parseItemListQuery(r, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]itemResponse, 0, len(result.Items))
	for _, it := range result.Items {
		items = append(items, toItemResponse(it))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(itemListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// UpdateItem は商品を部分更新する。指定されなかったフィールドは現在の値を維持する。
// PUT /api/items/:id
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	itemID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	// 現在の値を取得して、指定されたフィールドだけを差し替える
	current, err := h.service.Get(r.Context(), userID, itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	input := item.UpdateInput{
		Name:        current.Name,
		Description: current.Description,
		Price:       current.Price,
	}
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Description != nil {
		input.Description = req.Description
	}
	if req.Price != nil {
		input.Price = *req.Price
	}

	updated, err := h.service.Update(r.Context(), userID, itemID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(updated))
}

// DeleteItem は商品を削除する。
// DELETE /api/items/:id
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	itemID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, itemID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toItemResponse はmodel.ItemからAPIレスポンスに変換する。
func toItemResponse(it *model.Item) itemResponse {
	return itemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Price:       it.Price,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}

// requireUserID はリクエストコンテキストから認証済みユーザーIDを取り出す。
// 取得できない場合は401を書き込み、falseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return 0, false
	}
	return userID, true
}

// parseIDParam はURLパラメータ:idを数値IDとして解析する。
// 解析できない場合は400を書き込み、falseを返す。
func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "IDの形式が不正です: " + raw,
			Category: "validation",
			Action:   "数値のIDを指定してください。",
		})
		return 0, false
	}
	return id, true
}

// parseItemListQuery はクエリパラメータから商品一覧の検索条件を組み立てる。
// デフォルト値の適用と値域の検証はサービス層が行う。
func parseItemListQuery(r *http.Request, userID int64) (model.ItemListQuery, error) {
	query := model.ItemListQuery{
		UserID:    userID,
		SortBy:    model.ItemSortField(r.URL.Query().Get("sort_by")),
		SortOrder: model.SortOrder(r.URL.Query().Get("sort_order")),
		Search:    r.URL.Query().Get("search"),
	}

	var err error
	if query.Page, err = parseIntQuery(r, "page"); err != nil {
		return model.ItemListQuery{}, err
	}
	if query.PageSize, err = parseIntQuery(r, "page_size"); err != nil {
		return model.ItemListQuery{}, err
	}
	if query.MinPrice, err = parseDecimalQuery(r, "min_price"); err != nil {
		return model.ItemListQuery{}, err
	}
	if query.MaxPrice, err = parseDecimalQuery(r, "max_price"); err != nil {
		return model.ItemListQuery{}, err
	}

	return query, nil
}

// parseIntQuery は整数クエリパラメータを解析する。未指定の場合は0を返す。
func parseIntQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(name + "は整数で指定してください")
	}
	return v, nil
}

// parseDecimalQuery は数値クエリパラメータを解析する。未指定の場合はnilを返す。
func parseDecimalQuery(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, model.NewValidationError(name + "は数値で指定してください")
	}
	return &v, nil
}
