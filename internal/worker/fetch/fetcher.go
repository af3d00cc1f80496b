package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsswiper/internal/model"
)

// DefaultCategory はカテゴリ未指定のフィードに付けるカテゴリ。
const DefaultCategory = "General"

// FeedSource は取り込み対象のフィード定義。
// Sourceが空の場合はフィードのタイトルを使う。
type FeedSource struct {
	URL      string
	Source   string
	Category string
}

// ItemStore は記事の重複確認と保存のインターフェース。
type ItemStore interface {
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
	Create(ctx context.Context, item *model.NewsItem) error
}

// URLValidator はSSRF検証のインターフェース。
type URLValidator interface {
	Check(rawURL string) error
	Client(timeout time.Duration) *http.Client
}

// TextSanitizer はカード表示用の文字列を無害化する。
type TextSanitizer interface {
	Title(raw string) string
	Content(raw string) string
	Text(raw string) string
	ImageURL(raw string) string
}

// MetricsRecorder はフェッチのメトリクスを記録する。
type MetricsRecorder interface {
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordItemsImported(count int)
}

// Fetcher は個別フィードのHTTPフェッチとパースを行い、未登録の記事を保存する。
// ETag/Last-Modifiedを使用した条件付きGETを行う。
type Fetcher struct {
	store       ItemStore
	guard       URLValidator
	sanitizer   TextSanitizer
	metrics     MetricsRecorder
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	now         func() time.Time
}

// NewFetcher はFetcherの新しいインスタンスを生成する。metricsはnilでもよい。
func NewFetcher(
	store ItemStore,
	guard URLValidator,
	sanitizer TextSanitizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Fetcher{
		store:       store,
		guard:       guard,
		sanitizer:   sanitizer,
		metrics:     metrics,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		now:         time.Now,
	}
}

// Fetch はフィードを取得し、stateを結果に応じて更新する。
// 戻り値は新規に保存した記事数。パース失敗はstateに記録し、エラーとしては返さない。
func (f *Fetcher) Fetch(ctx context.Context, src FeedSource, state *FeedState) (int, error) {
	start := f.now()
	target := src.URL
	if state.FeedURL != "" {
		target = state.FeedURL
	}

	if err := f.guard.Check(target); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("feed_url", target),
			slog.String("error", err.Error()),
		)
		state.stop(fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.metrics.RecordFetchFailure("ssrf")
		return 0, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "NewsSwiper/1.0 Feed Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")
	if state.ETag != "" {
		req.Header.Set("If-None-Match", state.ETag)
	}
	if state.LastModified != "" {
		req.Header.Set("If-Modified-Since", state.LastModified)
	}

	resp, err := f.guard.Client(f.timeout).Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("feed_url", src.URL),
			slog.String("error", err.Error()),
		)
		state.backoff(f.now(), fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		f.metrics.RecordFetchFailure("network")
		return 0, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	f.metrics.RecordHTTPStatus(resp.StatusCode)

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultNotModified:
		f.logger.Info("フィードは未変更です（304）",
			slog.String("feed_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		state.succeed()
		f.metrics.RecordFetchSuccess()
		f.metrics.RecordFetchLatency(f.now().Sub(start))
		return 0, nil

	case FetchResultStop:
		reason := fmt.Sprintf("HTTPステータス %d によりフェッチを停止しました", resp.StatusCode)
		f.logger.Warn("フィードフェッチを停止します",
			slog.String("feed_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		state.stop(reason)
		f.metrics.RecordFetchFailure("http_stop")
		return 0, nil

	case FetchResultBackoff:
		f.logger.Warn("フィードフェッチにバックオフを適用します",
			slog.String("feed_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", state.ConsecutiveErrors+1),
		)
		state.backoff(f.now(), fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode))
		f.metrics.RecordFetchFailure("http_backoff")
		return 0, nil

	case FetchResultOK:
	default:
		f.logger.Warn("予期しないHTTPステータスコード",
			slog.String("feed_url", src.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		state.backoff(f.now(), fmt.Sprintf("予期しないHTTPステータス: %d", resp.StatusCode))
		f.metrics.RecordFetchFailure("http_unknown")
		return 0, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		state.backoff(f.now(), fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		f.metrics.RecordFetchFailure("read")
		return 0, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	// サイトのトップページが登録された場合はlinkタグからフィードを探して取得し直す
	if state.FeedURL == "" && isHTML(resp.Header.Get("Content-Type")) {
		if feedURL := DiscoverFeedURL(body, target); feedURL != "" {
			f.logger.Info("HTMLからフィードを検出しました",
				slog.String("page_url", target),
				slog.String("feed_url", feedURL),
			)
			state.FeedURL = feedURL
			return f.Fetch(ctx, src, state)
		}
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		state.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		state.LastModified = lastMod
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", src.URL),
			slog.String("error", err.Error()),
		)
		state.parseFailed(err.Error())
		f.metrics.RecordFetchFailure("parse")
		return 0, nil
	}

	items := f.convertItems(src, parsed)
	inserted, err := f.storeNew(ctx, items)
	if err != nil {
		f.logger.Error("記事の保存に失敗しました",
			slog.String("feed_url", src.URL),
			slog.String("error", err.Error()),
		)
		state.backoff(f.now(), fmt.Sprintf("記事保存失敗: %s", err.Error()))
		f.metrics.RecordFetchFailure("store")
		return inserted, err
	}

	state.succeed()
	duration := f.now().Sub(start)
	f.metrics.RecordFetchSuccess()
	f.metrics.RecordFetchLatency(duration)
	f.metrics.RecordItemsImported(inserted)

	f.logger.Info("フィードの取り込みが完了しました",
		slog.String("feed_url", src.URL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_inserted", inserted),
		slog.Int("items_total", len(items)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return inserted, nil
}

// storeNew は登録済みのリンクを除いて記事を保存する。
func (f *Fetcher) storeNew(ctx context.Context, items []model.NewsItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	links := make([]string, len(items))
	for i, item := range items {
		links[i] = item.Link
	}
	existing, err := f.store.ExistingLinks(ctx, links)
	if err != nil {
		return 0, fmt.Errorf("登録済みリンクの取得に失敗: %w", err)
	}
	if existing == nil {
		existing = make(map[string]bool)
	}

	inserted := 0
	for i := range items {
		if existing[items[i].Link] {
			continue
		}
		if err := f.store.Create(ctx, &items[i]); err != nil {
			return inserted, fmt.Errorf("記事の作成に失敗: %w", err)
		}
		existing[items[i].Link] = true
		inserted++
	}
	return inserted, nil
}

// convertItems はgofeedの記事をカード用の記事に変換する。
// リンクもタイトルもない記事は取り込まない。
func (f *Fetcher) convertItems(src FeedSource, feed *gofeed.Feed) []model.NewsItem {
	source := src.Source
	if source == "" {
		source = f.sanitizer.Text(feed.Title)
	}
	category := src.Category
	if category == "" {
		category = DefaultCategory
	}

	items := make([]model.NewsItem, 0, len(feed.Items))
	seen := make(map[string]bool, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		link := strings.TrimSpace(entry.Link)
		if link == "" && (strings.HasPrefix(entry.GUID, "http://") || strings.HasPrefix(entry.GUID, "https://")) {
			link = entry.GUID
		}
		title := f.sanitizer.Title(entry.Title)
		if link == "" || title == "" || seen[link] {
			continue
		}
		seen[link] = true

		content := entry.Description
		if content == "" {
			content = entry.Content
		}

		item := model.NewsItem{
			Title:    title,
			Content:  f.sanitizer.Content(content),
			ImageURL: f.sanitizer.ImageURL(entryImage(entry)),
			Source:   source,
			Category: category,
			Link:     link,
		}
		switch {
		case entry.PublishedParsed != nil:
			item.PublishedAt = *entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			item.PublishedAt = *entry.UpdatedParsed
		default:
			item.PublishedAt = f.now()
		}
		items = append(items, item)
	}
	return items
}

type nopMetrics struct{}

func (nopMetrics) RecordFetchSuccess()              {}
func (nopMetrics) RecordFetchFailure(string)        {}
func (nopMetrics) RecordHTTPStatus(int)             {}
func (nopMetrics) RecordFetchLatency(time.Duration) {}
func (nopMetrics) RecordItemsImported(int)          {}
