package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/zaiko/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, price, created_at, updated_at
		 FROM items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.UserID, &item.Name, &item.Description, &item.Price, &item.CreatedAt, &item.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}

	return item, nil
}

// sortColumns はソート指定として許可するカラムの許可リスト。
// 外部入力をそのままSQLに連結しないため、ここに無い値はcreated_atに落とす。
var sortColumns = map[model.ItemSortField]string{
	model.ItemSortName:      "name",
	model.ItemSortPrice:     "price",
	model.ItemSortCreatedAt: "created_at",
	model.ItemSortUpdatedAt: "updated_at",
}

// List はクエリ条件に合致する商品一覧と総件数を返す。
// user_idによる絞り込みは常に適用され、他ユーザーの商品は結果に現れない。
func (r *PostgresItemRepo) List(ctx context.Context, query model.ItemListQuery) ([]*model.Item, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{query.UserID}

	if query.Search != "" {
		args = append(args, "%"+query.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if query.MinPrice != nil {
		args = append(args, query.MinPrice.String())
		where = append(where, fmt.Sprintf("price >= $%d", len(args)))
	}
	if query.MaxPrice != nil {
		args = append(args, query.MaxPrice.String())
		where = append(where, fmt.Sprintf("price <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	// 総件数
	var total int
	countQuery := "SELECT COUNT(*) FROM items WHERE " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	// ソートカラムは許可リスト経由でのみ組み立てる
	sortCol, ok := sortColumns[query.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	direction := "ASC"
	if query.SortOrder == model.SortDesc {
		direction = "DESC"
	}

	args = append(args, query.PageSize)
	limitPos := len(args)
	args = append(args, query.Offset())
	offsetPos := len(args)

	listQuery := fmt.Sprintf(
		`SELECT id, user_id, name, description, price, created_at, updated_at
		 FROM items WHERE %s
		 ORDER BY %s %s, id %s
		 LIMIT $%d OFFSET $%d`,
		whereClause, sortCol, direction, direction, limitPos, offsetPos,
	)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*model.Item{}
	for rows.Next() {
		item := &model.Item{}
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Description, &item.Price, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, total, nil
}

// Create は商品を作成し、採番されたIDをitem.IDに設定する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO items (user_id, name, description, price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		item.UserID, item.Name, item.Description, item.Price, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)

	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// Update は商品を上書き更新する。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.Item) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items
		 SET name = $1, description = $2, price = $3, updated_at = $4
		 WHERE id = $5`,
		item.Name, item.Description, item.Price, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %d", item.ID)
	}

	return nil
}

// Delete は指定IDの商品を削除する。
func (r *PostgresItemRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %d", id)
	}
	return nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
