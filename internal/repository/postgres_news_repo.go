package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/hitoshi/newsswiper/internal/model"
)

// psql はPostgreSQLのプレースホルダ（$1, $2, ...）を使うステートメントビルダー。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var newsColumns = []string{
	"id", "title", "content", "image_url", "source", "category",
	"link", "published_at", "created_at",
}

// PostgresNewsItemRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresNewsItemRepo struct {
	db *sql.DB
}

// NewPostgresNewsItemRepo はPostgresNewsItemRepoを生成する。
func NewPostgresNewsItemRepo(db *sql.DB) *PostgresNewsItemRepo {
	return &PostgresNewsItemRepo{db: db}
}

// Count は条件に一致する記事数を返す。
func (r *PostgresNewsItemRepo) Count(ctx context.Context, category string) (int, error) {
	query, args, err := withCategory(psql.Select("count(*)").From("news_items"), category).ToSql()
	if err != nil {
		return 0, fmt.Errorf("記事数クエリの構築に失敗しました: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}
	return total, nil
}

// List は記事をpublished_at降順で取得する。同時刻の記事はID降順で並べる。
func (r *PostgresNewsItemRepo) List(ctx context.Context, filter NewsListFilter) ([]model.NewsItem, error) {
	b := withCategory(psql.Select(newsColumns...).From("news_items"), filter.Category).
		OrderBy("published_at DESC", "id DESC")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("記事一覧クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := make([]model.NewsItem, 0, filter.Limit)
	for rows.Next() {
		item, err := scanNewsItem(rows)
		if err != nil {
			return nil, fmt.Errorf("記事のスキャンに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
	}
	return items, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresNewsItemRepo) FindByID(ctx context.Context, id int64) (*model.NewsItem, error) {
	query, args, err := psql.Select(newsColumns...).From("news_items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("記事取得クエリの構築に失敗しました: %w", err)
	}

	item, err := scanNewsItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return &item, nil
}

// Create は記事を作成する。
// Linkが空の場合はNULLとして保存し、published_atがゼロ値の場合は現在時刻を使用する。
func (r *PostgresNewsItemRepo) Create(ctx context.Context, item *model.NewsItem) error {
	publishedAt := item.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now()
	}

	query, args, err := psql.Insert("news_items").
		Columns("title", "content", "image_url", "source", "category", "link", "published_at").
		Values(item.Title, item.Content, item.ImageURL, item.Source, item.Category, nullString(item.Link), publishedAt).
		Suffix("RETURNING id, published_at, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("記事作成クエリの構築に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx, query, args...).Scan(&item.ID, &item.PublishedAt, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// ExistingLinks は指定リンクのうち登録済みのものを返す。
func (r *PostgresNewsItemRepo) ExistingLinks(ctx context.Context, links []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(links) == 0 {
		return existing, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT link FROM news_items WHERE link = ANY($1)`,
		pq.Array(links),
	)
	if err != nil {
		return nil, fmt.Errorf("登録済みリンクの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("リンクのスキャンに失敗しました: %w", err)
		}
		existing[link] = true
	}
	return existing, rows.Err()
}

// DeleteImportedBefore はフィードから取り込んだ記事のうちcutoffより古いものを削除する。
func (r *PostgresNewsItemRepo) DeleteImportedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.Delete("news_items").
		Where(sq.NotEq{"link": nil}).
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("記事削除クエリの構築に失敗しました: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	return result.RowsAffected()
}

func withCategory(b sq.SelectBuilder, category string) sq.SelectBuilder {
	if category == "" {
		return b
	}
	return b.Where(sq.Eq{"category": category})
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNewsItem(s rowScanner) (model.NewsItem, error) {
	var item model.NewsItem
	var link sql.NullString
	err := s.Scan(
		&item.ID, &item.Title, &item.Content, &item.ImageURL, &item.Source, &item.Category,
		&link, &item.PublishedAt, &item.CreatedAt,
	)
	if err != nil {
		return model.NewsItem{}, err
	}
	item.Link = link.String
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
