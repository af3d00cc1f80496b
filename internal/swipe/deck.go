package swipe

import "github.com/hitoshi/newsswiper/internal/model"

// Deck は読み込んだ記事列と単一のカーソルを保持する。
// 記事列は読み込み元のスライスを参照し、コピーはしない。
// カーソルは [0, Len()] の範囲で単調に増加する。
type Deck struct {
	items  []model.NewsItem
	cursor int
}

// NewDeck は記事列からDeckを生成する。
func NewDeck(items []model.NewsItem) Deck {
	return Deck{items: items}
}

// Current はカーソル位置の記事を返す。使い切っている場合はfalseを返す。
func (d Deck) Current() (model.NewsItem, bool) {
	if d.cursor >= len(d.items) {
		return model.NewsItem{}, false
	}
	return d.items[d.cursor], true
}

// Advance はカーソルを1つ進める。末尾では何もしない。
func (d *Deck) Advance() {
	if d.cursor < len(d.items) {
		d.cursor++
	}
}

// Exhausted はカーソルが末尾に達しているかどうかを返す。
func (d Deck) Exhausted() bool {
	return d.cursor >= len(d.items)
}

// Cursor は現在のカーソル位置を返す。
func (d Deck) Cursor() int {
	return d.cursor
}

// Len はデッキの記事数を返す。
func (d Deck) Len() int {
	return len(d.items)
}
