// Package fetch は外部フィードから記事を取り込むバックグラウンド処理を提供する。
// スケジューラ、フェッチャー、リトライ/バックオフ戦略を含む。
package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FeedFetcher はフィードフェッチの実行インターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context, src FeedSource, state *FeedState) (int, error)
}

// Scheduler はフィード取り込みのスケジューリングと並列制御を行う。
// フィードごとのFeedStateを保持し、停止中またはバックオフ中のフィードはスキップする。
type Scheduler struct {
	feeds          []FeedSource
	fetcher        FeedFetcher
	logger         *slog.Logger
	maxConcurrency int
	now            func() time.Time

	mu     sync.Mutex
	states map[string]*FeedState
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(feeds []FeedSource, fetcher FeedFetcher, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	states := make(map[string]*FeedState, len(feeds))
	unique := make([]FeedSource, 0, len(feeds))
	for _, f := range feeds {
		if _, dup := states[f.URL]; dup {
			continue
		}
		states[f.URL] = &FeedState{}
		unique = append(unique, f)
	}
	return &Scheduler{
		feeds:          unique,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
		states:         states,
	}
}

// Start はintervalごとにRunOnceを実行する。起動直後に1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("feed_count", len(s.feeds)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce はフェッチ対象のフィードを並列で取り込み、新規記事の合計数を返す。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := s.now()
	due := s.dueFeeds(start)
	if len(due) == 0 {
		s.logger.Info("フェッチ対象のフィードはありません")
		return 0
	}

	s.logger.Info("取り込みサイクルを開始します",
		slog.Int("feed_count", len(due)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for _, src := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(src FeedSource) {
			defer wg.Done()
			defer func() { <-sem }()

			// FeedStateはフィードごとに1つのgoroutineだけが触る
			state := s.state(src.URL)
			n, err := s.fetcher.Fetch(ctx, src, state)
			if err != nil {
				s.logger.Error("フィードの取り込みに失敗しました",
					slog.String("feed_url", src.URL),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("feed_count", len(due)),
		slog.Int("items_inserted", total),
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
	return total
}

// State はフィードの現在の状態のコピーを返す。
func (s *Scheduler) State(url string) (FeedState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[url]
	if !ok {
		return FeedState{}, false
	}
	return *st, true
}

func (s *Scheduler) dueFeeds(now time.Time) []FeedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []FeedSource
	for _, f := range s.feeds {
		if s.states[f.URL].Due(now) {
			due = append(due, f)
		}
	}
	return due
}

func (s *Scheduler) state(url string) *FeedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[url]
}
