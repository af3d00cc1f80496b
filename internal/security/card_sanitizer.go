// Package security はフィードから取り込む記事データの無害化とSSRF防止を提供する。
//
// カードはプレーンテキストとして描画されるため、CardSanitizer はHTMLを一切通さない
// bluemondayのStrictPolicyでタグを除去し、実体参照を戻したうえで空白を正規化する。
package security

import (
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// デフォルトの最大文字数
const (
	DefaultMaxTitleRunes   = 200
	DefaultMaxContentRunes = 600
)

// CardSanitizer はカードに表示する文字列とURLを無害化する。
// bluemondayのPolicyはスレッドセーフなので、複数のgoroutineから共有できる。
type CardSanitizer struct {
	policy          *bluemonday.Policy
	maxTitleRunes   int
	maxContentRunes int
}

// NewCardSanitizer はCardSanitizerを生成する。0以下の上限はデフォルト値を使う。
func NewCardSanitizer(maxTitleRunes, maxContentRunes int) *CardSanitizer {
	if maxTitleRunes <= 0 {
		maxTitleRunes = DefaultMaxTitleRunes
	}
	if maxContentRunes <= 0 {
		maxContentRunes = DefaultMaxContentRunes
	}
	return &CardSanitizer{
		policy:          bluemonday.StrictPolicy(),
		maxTitleRunes:   maxTitleRunes,
		maxContentRunes: maxContentRunes,
	}
}

// Title は見出し用のプレーンテキストを返す。
func (s *CardSanitizer) Title(raw string) string {
	return truncate(s.Text(raw), s.maxTitleRunes)
}

// Content は本文用のプレーンテキストを返す。
func (s *CardSanitizer) Content(raw string) string {
	return truncate(s.Text(raw), s.maxContentRunes)
}

// Text はHTMLタグを除去し、連続する空白を1つにまとめたテキストを返す。
// script/styleの中身もタグごと除去される。
func (s *CardSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	// タグ境界で単語が連結しないよう、除去前に空白を挟む
	stripped := s.policy.Sanitize(strings.ReplaceAll(raw, "<", " <"))
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// ImageURL は画像URLとして許可できる場合にそのまま返し、それ以外は空文字列を返す。
// 許可するのは絶対URLのhttpsのみ。
func (s *CardSanitizer) ImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// truncate はlimit文字を超える場合に末尾を省略記号に置き換える。
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit-1]), " ") + "…"
}
