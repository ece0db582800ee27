// Package post は投稿の管理機能を提供する。
package post

import (
	"context"
	"strings"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
	"github.com/hitoshi/zaiko/internal/repository"
	"github.com/hitoshi/zaiko/internal/security"
)

const (
	maxTitleLength    = 100
	maxContentLength  = 5000
	maxLocationLength = 12

	defaultPageSize = 20
	maxPageSize     = 100
)

// geohashAlphabet はgeohashで使用されるBase32文字セット（a, i, l, oを除く）。
const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Service は投稿CRUDのサービス層。
// 本文HTMLは保存前にサニタイズされる。全ての操作は認証済みユーザーの
// スコープで行われ、他ユーザー所有の投稿は存在しないものとして扱う。
type Service struct {
	postRepo  repository.PostRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(postRepo repository.PostRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		postRepo:  postRepo,
		sanitizer: sanitizer,
	}
}

// CreateInput は投稿作成の入力。
type CreateInput struct {
	Title     string
	Content   *string
	Published bool
	Location  *string
}

// UpdateInput は投稿更新の入力。全項目を上書きする（部分更新ではない）。
type UpdateInput struct {
	Title     string
	Content   *string
	Published bool
	Location  *string
}

// ListResult はListの戻り値。
type ListResult struct {
	Posts    []*model.Post
	Total    int
	Page     int
	PageSize int
}

// Create は認証済みユーザーの投稿を作成する。本文はサニタイズして保存する。
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (*model.Post, error) {
	if err := validatePostInput(input.Title, input.Content, input.Location); err != nil {
		return nil, err
	}

	now := time.Now()
	post := &model.Post{
		UserID:    userID,
		Title:     input.Title,
		Content:   s.sanitizeContent(input.Content),
		Published: input.Published,
		Location:  input.Location,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	return post, nil
}

// Get は投稿を1件取得する。
// 存在しない場合と他ユーザー所有の場合は、どちらも同じ未検出エラーを返す。
func (s *Service) Get(ctx context.Context, userID, postID int64) (*model.Post, error) {
	return s.findOwned(ctx, userID, postID)
}

// List は認証済みユーザーの投稿一覧をページネーション付きで返す。
func (s *Service) List(ctx context.Context, query model.PostListQuery) (*ListResult, error) {
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Page < 1 {
		return nil, model.NewValidationError("ページ番号は1以上を指定してください")
	}
	if query.PageSize == 0 {
		query.PageSize = defaultPageSize
	}
	if query.PageSize < 1 || query.PageSize > maxPageSize {
		return nil, model.NewValidationError("ページサイズは1から100の範囲で指定してください")
	}

	posts, total, err := s.postRepo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Posts:    posts,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}, nil
}

// Update は投稿を全項目上書きで更新する。本文は再サニタイズされる。
func (s *Service) Update(ctx context.Context, userID, postID int64, input UpdateInput) (*model.Post, error) {
	if err := validatePostInput(input.Title, input.Content, input.Location); err != nil {
		return nil, err
	}

	post, err := s.findOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	post.Title = input.Title
	post.Content = s.sanitizeContent(input.Content)
	post.Published = input.Published
	post.Location = input.Location
	post.UpdatedAt = time.Now()

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	return post, nil
}

// Delete は投稿を削除する。
func (s *Service) Delete(ctx context.Context, userID, postID int64) error {
	post, err := s.findOwned(ctx, userID, postID)
	if err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, post.ID)
}

// findOwned は投稿を取得し、所有者が一致することを確認する。
// 不在と所有者不一致は区別せず同一の未検出エラーを返す（存在を漏らさない）。
func (s *Service) findOwned(ctx context.Context, userID, postID int64) (*model.Post, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		return nil, model.NewPostNotFoundError(postID)
	}
	return post, nil
}

// sanitizeContent は本文をサニタイズする。nilはnilのまま返す。
func (s *Service) sanitizeContent(content *string) *string {
	if content == nil {
		return nil
	}
	sanitized := s.sanitizer.Sanitize(*content)
	return &sanitized
}

// validatePostInput は投稿入力の検証を行う。
func validatePostInput(title string, content *string, location *string) error {
	if title == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if len([]rune(title)) > maxTitleLength {
		return model.NewValidationError("タイトルは100文字以内で入力してください")
	}
	if content != nil && len([]rune(*content)) > maxContentLength {
		return model.NewValidationError("本文は5000文字以内で入力してください")
	}
	if location != nil {
		if err := validateGeohash(*location); err != nil {
			return err
		}
	}
	return nil
}

// validateGeohash はlocationがgeohash形式（Base32、最大12文字）であることを検証する。
func validateGeohash(location string) error {
	if location == "" {
		return model.NewValidationError("位置情報が空です")
	}
	if len(location) > maxLocationLength {
		return model.NewValidationError("位置情報は12文字以内のgeohashを指定してください")
	}
	for _, c := range strings.ToLower(location) {
		if !strings.ContainsRune(geohashAlphabet, c) {
			return model.NewValidationError("位置情報にgeohashで使用できない文字が含まれています")
		}
	}
	return nil
}
