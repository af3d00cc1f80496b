// Package model はドメインモデルを定義する。
package model

import "time"

// NewsItem はカードとして表示するニュース記事を表す。
// スワイプ処理からは読み取り専用として扱う。
type NewsItem struct {
	ID          int64
	Title       string
	Content     string // プレーンテキスト（サニタイズ済み）
	ImageURL    string
	Source      string
	Category    string
	Link        string // インポート元の記事URL。シードデータでは空
	PublishedAt time.Time
	CreatedAt   time.Time
}

// NewsPage はページネーション付きの記事一覧を表す。
type NewsPage struct {
	Items       []NewsItem
	Total       int
	Pages       int
	CurrentPage int
}

// SwipeAction はスワイプ結果としてActionSinkに渡されるアクション。
type SwipeAction string

const (
	// ActionSave は右スワイプ（保存）を表す。
	ActionSave SwipeAction = "save"
	// ActionSkip は左スワイプ（スキップ）を表す。
	ActionSkip SwipeAction = "skip"
)

// Valid はアクションが定義済みの値かどうかを返す。
func (a SwipeAction) Valid() bool {
	return a == ActionSave || a == ActionSkip
}

// NewsItemPayload はHTTP APIで送受信する記事のJSON表現。
// フィールド名はフロントエンドとの互換性のためsnake_caseを使用する。
type NewsItemPayload struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Link        string    `json:"link,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Payload は記事をJSON表現に変換する。
func (n NewsItem) Payload() NewsItemPayload {
	return NewsItemPayload(n)
}

// NewsItem はJSON表現を記事に変換する。
func (p NewsItemPayload) NewsItem() NewsItem {
	return NewsItem(p)
}
