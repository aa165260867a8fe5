// Package cleanup は期限切れセッションの削除ジョブを提供する。
// 期限切れセッションは読み取り時に無視されるため、削除は容量回収のみを目的とする。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPruner は期限切れセッションを削除するストア。
// PostgresSessionRepoとMemorySessionRepoが実装する。
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder は削除件数の記録先。
type Recorder interface {
	RecordSessionsPruned(count int64)
}

// DefaultInterval はserveモードでの定期実行間隔。
const DefaultInterval = 15 * time.Minute

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	pruner   SessionPruner
	logger   *slog.Logger
	recorder Recorder
	Interval time.Duration // 定期実行の間隔（デフォルト: 15分）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(pruner SessionPruner, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		pruner:   pruner,
		logger:   logger,
		recorder: recorder,
		Interval: DefaultInterval,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.pruner.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsPruned(deleted)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はctxがキャンセルされるまでIntervalごとにRunを実行する。
// 個々の実行エラーはログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
