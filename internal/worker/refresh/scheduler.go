// Package refresh はバックグラウンドの定期更新ジョブを提供する。
// ニュースの取得、カウントダウン対象の再確認、次の試合の天気予報の先読みを
// それぞれ独立したティッカーで実行する。ジョブ間の協調は行わない。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task は定期実行するジョブ。
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler は複数のTaskを独立したティッカーで実行する。
// semaphoreパターンで同時に実行するジョブ数を制御する。
type Scheduler struct {
	tasks          []Task
	logger         *slog.Logger
	maxConcurrency int
	sem            chan struct{}
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値2を使用する。
// Intervalが0以下のTaskは登録しない。
func NewScheduler(logger *slog.Logger, maxConcurrency int, tasks ...Task) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 2
	}
	active := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Interval <= 0 || t.Run == nil {
			logger.Warn("定期ジョブを無効化しました", slog.String("task", t.Name))
			continue
		}
		active = append(active, t)
	}
	return &Scheduler{
		tasks:          active,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		sem:            make(chan struct{}, maxConcurrency),
	}
}

// Tasks は登録されたジョブ名を返す。
func (s *Scheduler) Tasks() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// Start は全ジョブのティッカーを起動する。
// 各ジョブは起動直後に1回実行される。コンテキストがキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("定期更新スケジューラを開始しました",
		slog.Int("task_count", len(s.tasks)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(t)
	}
	wg.Wait()

	s.logger.Info("定期更新スケジューラを停止しました")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	s.execute(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, t)
		}
	}
}

// RunOnce は全ジョブを1回ずつ並列に実行し、完了を待つ。
func (s *Scheduler) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range s.tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			s.execute(ctx, t)
		}(t)
	}
	wg.Wait()
}

// execute はsemaphoreを取得してジョブを1回実行する。
// 失敗はログに残すだけで、次の周期で再実行する。
func (s *Scheduler) execute(ctx context.Context, t Task) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	start := time.Now()
	if err := t.Run(ctx); err != nil {
		s.logger.Error("定期ジョブの実行に失敗しました",
			slog.String("task", t.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("定期ジョブが完了しました",
		slog.String("task", t.Name),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
