// Package cleanup はログイン監査記録の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したlogin_auditsを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/zaiko/internal/repository"
)

// CleanupJob は保持期間を超過したログイン監査記録の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	auditRepo     repository.LoginAuditRepository
	logger        *slog.Logger
	RetentionDays int // 監査記録の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(auditRepo repository.LoginAuditRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		auditRepo:     auditRepo,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過したログイン監査記録を削除する。
// logged_in_atがRetentionDays日前より古い記録をDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.auditRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("監査記録クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("監査記録クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("監査記録クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
