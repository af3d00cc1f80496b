// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/newsswiper/internal/model"
)

// NewsListFilter は記事一覧の取得条件。
type NewsListFilter struct {
	// Category が空でない場合はカテゴリで絞り込む。
	Category string
	Limit    int
	Offset   int
}

// NewsItemRepository は記事データの永続化インターフェース。
type NewsItemRepository interface {
	// Count は条件に一致する記事数を返す。
	Count(ctx context.Context, category string) (int, error)

	// List は記事をpublished_at降順で取得する。
	List(ctx context.Context, filter NewsListFilter) ([]model.NewsItem, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.NewsItem, error)

	// Create は記事を作成し、採番されたIDとcreated_atをitemに設定する。
	Create(ctx context.Context, item *model.NewsItem) error

	// ExistingLinks は指定リンクのうち登録済みのものを返す。
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)

	// DeleteImportedBefore はフィードから取り込んだ記事のうちcutoffより古いものを削除する。
	// link IS NULLのシード記事は対象外。
	DeleteImportedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
