// Package cleanup は取り込み記事の自動削除ジョブを提供する。
// 保持期間を超過したフィード由来の記事を定期的に削除する。
// シード記事（linkがNULL）は削除しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は記事の保持日数のデフォルト値。
const DefaultRetentionDays = 30

// Deleter は保持期間を超過した取り込み記事を削除する。
type Deleter interface {
	DeleteImportedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder は削除件数のメトリクスを記録する。
type Recorder interface {
	RecordItemsDeleted(count int64)
}

// CleanupJob は保持期間を超過した記事の自動削除ジョブ。
// 削除対象がない場合もエラーにならず、何度実行しても結果は変わらない。
type CleanupJob struct {
	deleter       Deleter
	recorder      Recorder
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(deleter Deleter, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		deleter:       deleter,
		recorder:      recorder,
		logger:        logger,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run はRetentionDays日より前に取り込んだ記事を削除し、削除件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := j.now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.deleter.DeleteImportedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("記事クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("記事クリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordItemsDeleted(deleted)
	}

	j.logger.Info("記事クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return deleted, nil
}

// Start はintervalごとにRunを実行する。起動直後に1回実行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	_, _ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
