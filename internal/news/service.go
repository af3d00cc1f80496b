// Package news は記事の一覧取得・シード投入と、スワイプデッキへの記事供給を提供する。
package news

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/newsswiper/internal/model"
	"github.com/hitoshi/newsswiper/internal/repository"
)

const (
	// DefaultPerPage はper_page未指定時の件数。
	DefaultPerPage = 10
	// DefaultMaxPerPage はper_pageの上限のデフォルト値。
	DefaultMaxPerPage = 100
)

// Service は記事取得のサービス。
type Service struct {
	repo       repository.NewsItemRepository
	logger     *slog.Logger
	maxPerPage int
}

// NewService はServiceの新しいインスタンスを生成する。
// maxPerPageが0以下の場合はDefaultMaxPerPageを使用する。
func NewService(repo repository.NewsItemRepository, logger *slog.Logger, maxPerPage int) *Service {
	if maxPerPage <= 0 {
		maxPerPage = DefaultMaxPerPage
	}
	return &Service{
		repo:       repo,
		logger:     logger,
		maxPerPage: maxPerPage,
	}
}

// List は記事をpublished_at降順でページ単位に返す。
// pageは1始まり。perPageが上限を超える場合は上限に丸める。
// 範囲外のページは空のItemsを返す。
func (s *Service) List(ctx context.Context, page, perPage int, category string) (*model.NewsPage, error) {
	if page < 1 {
		return nil, model.NewInvalidPageError("page must be >= 1")
	}
	if perPage < 1 {
		return nil, model.NewInvalidPageError("per_page must be >= 1")
	}
	if perPage > s.maxPerPage {
		perPage = s.maxPerPage
	}

	total, err := s.repo.Count(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}

	result := &model.NewsPage{
		Items:       []model.NewsItem{},
		Total:       total,
		Pages:       (total + perPage - 1) / perPage,
		CurrentPage: page,
	}
	// 最終ページより後ろはクエリしない。(page-1)*perPageのオーバーフローもここで防ぐ
	if page > 1 && page > result.Pages {
		return result, nil
	}

	items, err := s.repo.List(ctx, repository.NewsListFilter{
		Category: category,
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	})
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	if items != nil {
		result.Items = items
	}
	return result, nil
}

// Get は指定IDの記事を返す。存在しない場合はNEWS_ITEM_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.NewsItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if item == nil {
		return nil, model.NewNewsItemNotFoundError(id)
	}
	return item, nil
}

// LoadItems はデッキ用に先頭ページの記事を返す。swipe.Loaderを実装する。
func (s *Service) LoadItems(ctx context.Context, perPage int) ([]model.NewsItem, error) {
	page, err := s.List(ctx, 1, perPage, "")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Seed は記事が1件もない場合にサンプル記事を投入し、投入件数を返す。
// 既に記事がある場合は何もしない。
func (s *Service) Seed(ctx context.Context) (int, error) {
	total, err := s.repo.Count(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}
	if total > 0 {
		s.logger.Info("記事が存在するためシードをスキップします",
			slog.Int("total", total),
		)
		return 0, nil
	}

	inserted := 0
	for _, item := range SampleNews() {
		if err := s.repo.Create(ctx, &item); err != nil {
			return inserted, fmt.Errorf("サンプル記事の投入に失敗しました: %w", err)
		}
		inserted++
	}

	s.logger.Info("サンプル記事を投入しました",
		slog.Int("inserted", inserted),
	)
	return inserted, nil
}
