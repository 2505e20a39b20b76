// Package cleanup は期限切れ検証トークンの自動削除ジョブを提供する。
// 期限切れトークンは読み取り時に常に除外されるため機能上は無害だが、
// テーブルの肥大化を防ぐために日次バッチで物理削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nesafrica/endorse/internal/repository"
)

// PurgeRecorder は削除件数のメトリクス記録インターフェース。
type PurgeRecorder interface {
	RecordTokensPurged(count int64)
}

// Job は期限切れトークンの自動削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type Job struct {
	tokens   repository.TokenRepository
	logger   *slog.Logger
	recorder PurgeRecorder
	Interval time.Duration // 実行間隔（デフォルト: 24時間）
	now      func() time.Time
}

// NewJob は新しいJobを生成する。recorderはnilでもよい。
func NewJob(tokens repository.TokenRepository, logger *slog.Logger, recorder PurgeRecorder) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		tokens:   tokens,
		logger:   logger,
		recorder: recorder,
		Interval: 24 * time.Hour,
		now:      time.Now,
	}
}

// Run は期限切れトークンを1回削除する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.tokens.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("期限切れトークンの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordTokensPurged(deleted)
	}

	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はIntervalごとにRunを実行するループを開始する。
// 起動直後に1回実行し、以降は定期実行する。ctxのキャンセルで停止する。
// 1回の失敗はログに記録してループを継続する。
func (j *Job) Start(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップの初回実行に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップの定期実行に失敗しました", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止します")
			return
		}
	}
}
