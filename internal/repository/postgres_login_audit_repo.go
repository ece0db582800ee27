package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/zaiko/internal/model"
)

// PostgresLoginAuditRepo はPostgreSQLを使用したログイン監査リポジトリ。
type PostgresLoginAuditRepo struct {
	db *sql.DB
}

// NewPostgresLoginAuditRepo はPostgresLoginAuditRepoを生成する。
func NewPostgresLoginAuditRepo(db *sql.DB) *PostgresLoginAuditRepo {
	return &PostgresLoginAuditRepo{db: db}
}

// Record はログインイベントを記録する。
func (r *PostgresLoginAuditRepo) Record(ctx context.Context, audit *model.LoginAudit) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_audits (id, user_id, line_user_id, new_user, logged_in_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		audit.ID, audit.UserID, audit.LineUserID, audit.NewUser, audit.LoggedInAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert login audit: %w", err)
	}
	return nil
}

// DeleteOlderThan は指定時刻より古い監査記録を削除し、削除件数を返す。
// 削除対象がない場合もエラーにならない（冪等）。
func (r *PostgresLoginAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM login_audits WHERE logged_in_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete login audits: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ LoginAuditRepository = (*PostgresLoginAuditRepo)(nil)
