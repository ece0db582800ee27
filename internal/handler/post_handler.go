package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, userID int64, input post.CreateInput) (*model.Post, error)
	Get(ctx context.Context, userID, postID int64) (*model.Post, error)
	List(ctx context.Context, query model.PostListQuery) (*post.ListResult, error)
	Update(ctx context.Context, userID, postID int64, input post.UpdateInput) (*model.Post, error)
	Delete(ctx context.Context, userID, postID int64) error
}

// PostHandler は投稿管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Title     string  `json:"title"`
	Content   *string `json:"content,omitempty"`
	Published bool    `json:"published"`
	Location  *string `json:"location,omitempty"`
}

// updatePostRequest は投稿更新リクエストのボディ。
// nilのフィールドは現在の値を維持する（部分更新）。
type updatePostRequest struct {
	Title     *string `json:"title,omitempty"`
	Content   *string `json:"content,omitempty"`
	Published *bool   `json:"published,omitempty"`
	Location  *string `json:"location,omitempty"`
}

// postResponse は投稿情報のAPIレスポンス。Contentはサニタイズ済みHTML。
type postResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content,omitempty"`
	Published bool      `json:"published"`
	Location  *string   `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// postListResponse は投稿一覧のレスポンス。
type postListResponse struct {
	Posts    []postResponse `json:"posts"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	created, err := h.service.Create(r.Context(), userID, post.CreateInput{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
		Location:  req.Location,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(created))
}

// GetPost は投稿詳細を取得する。
// GET /api/posts/:id
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	postID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostResponse(found))
}

// ListPosts は投稿一覧をページネーション付きで取得する。
// GET /api/posts?page=1&page_size=20&published=true
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	query := model.PostListQuery{UserID: userID}

	var err error
	if query.Page, err = parseIntQuery(r, "page"); err != nil {
		handleServiceError(w, err)
		return
	}
	if query.PageSize, err = parseIntQuery(r, "page_size"); err != nil {
		handleServiceError(w, err)
		return
	}
	if raw := r.URL.Query().Get("published"); raw != "" {
		published, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			handleServiceError(w, model.NewValidationError("publishedはtrueまたはfalseを指定してください"))
			return
		}
		query.Published = &published
	}

	result, err := h.service.List(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	posts := make([]postResponse, 0, len(result.Posts))
	for _, p := range result.Posts {
		posts = append(posts, toPostResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(postListResponse{
		Posts:    posts,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// UpdatePost は投稿を部分更新する。指定されなかったフィールドは現在の値を維持する。
// PUT /api/posts/:id
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	postID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	// 現在の値を取得して、指定されたフィールドだけを差し替える
	current, err := h.service.Get(r.Context(), userID, postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	input := post.UpdateInput{
		Title:     current.Title,
		Content:   current.Content,
		Published: current.Published,
		Location:  current.Location,
	}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Content != nil {
		input.Content = req.Content
	}
	if req.Published != nil {
		input.Published = *req.Published
	}
	if req.Location != nil {
		input.Location = req.Location
	}

	updated, err := h.service.Update(r.Context(), userID, postID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostResponse(updated))
}

// DeletePost は投稿を削除する。
// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	postID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Published: p.Published,
		Location:  p.Location,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
