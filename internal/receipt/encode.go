package receipt

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hennedo/escpos"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// Columns は80mmサーマルプリンター（フォントA）の1行あたりの文字数。
const Columns = 42

// ESC/POSコマンド。書式と紙送り、カットはescposパッケージが出力する。
var (
	cmdInit      = []byte{0x1b, 0x40}       // ESC @
	cmdCodePage  = []byte{0x1b, 0x74, 0x00} // ESC t 0: PC437
	unknownGlyph = byte('?')
)

// typography はPC437にない記号をASCIIに置き換える。
var typography = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201c", "\"", "\u201d", "\"",
	"\u2013", "-", "\u2014", "-", "\u2026", "...", "\u2022", "-",
	"\u00a0", " ",
)

// scale は文字サイズ。上位4bitが横倍、下位4bitが縦倍のフラグ。
type scale byte

const (
	scaleNormal scale = 0x00
	scaleWide   scale = 0x10
	scaleTall   scale = 0x01
	scaleLarge  scale = 0x11
)

func (s scale) width() int {
	if s&scaleWide != 0 {
		return 2
	}
	return 1
}

func (s scale) height() int {
	if s&scaleTall != 0 {
		return 2
	}
	return 1
}

type alignment byte

const (
	alignLeft alignment = iota
	alignCenter
	alignRight
)

type segment struct {
	text string
	bold bool
	size scale
}

func (s segment) width() int {
	return utf8.RuneCountInString(s.text) * s.size.width()
}

type printLine struct {
	align alignment
	segs  []segment
}

func (l printLine) width() int {
	w := 0
	for _, s := range l.segs {
		w += s.width()
	}
	return w
}

// Encode はレシートのマークアップをESC/POSのバイト列に変換する。
// 文字はPC437に変換し、表現できない文字は ? になる。
//
// マークアップの記法:
//   - 行頭の ^ / ^^ / ^^^ : 横倍 / 縦倍（中央揃え） / 縦横倍（中央揃え）
//   - {text:wide} ... {text:normal} : 横倍
//   - *...* : 強調
//   - \x : xをそのまま印字する（\* や \\）
//   - --- : 罫線
//   - 左 | 右 : 左右揃えの2カラム。セル先頭の ^ はそのセルを横倍にする
func Encode(markup string) []byte {
	var buf bytes.Buffer
	// bytes.Bufferへの書き込みは失敗しない
	_ = encodeTo(&buf, markup)
	return buf.Bytes()
}

func encodeTo(w io.Writer, markup string) error {
	p := escpos.New(w)
	if _, err := p.WriteRaw(append(append([]byte{}, cmdInit...), cmdCodePage...)); err != nil {
		return err
	}

	// 置き換えで文字数が変わるため、レイアウトの前に行う
	for _, l := range layout(norm.NFC.String(typography.Replace(markup))) {
		p.Justify(justify(l.align))
		for _, s := range l.segs {
			p.Bold(s.bold).Size(uint8(s.size.width()), uint8(s.size.height()))
			if _, err := p.Write(string(toCodePage437(s.text))); err != nil {
				return err
			}
		}
		p.Bold(false).Size(1, 1)
		if _, err := p.LineFeed(); err != nil {
			return err
		}
	}

	p.Justify(escpos.JustifyLeft)
	for range 3 {
		if _, err := p.LineFeed(); err != nil {
			return err
		}
	}
	return p.PrintAndCut()
}

func justify(a alignment) uint8 {
	switch a {
	case alignCenter:
		return escpos.JustifyCenter
	case alignRight:
		return escpos.JustifyRight
	default:
		return escpos.JustifyLeft
	}
}

// toCodePage437 は文字列をPC437のバイト列に変換する。
// 結合文字で書かれたアクセント付き文字は、呼び出し側でNFCに合成しておく。
func toCodePage437(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		b, ok := charmap.CodePage437.EncodeRune(r)
		if !ok {
			b = unknownGlyph
		}
		out = append(out, b)
	}
	return out
}

// PlainText はマークアップを制御コードなしの固定幅テキストとして描画する。
// 横倍の文字は2カラムを占有するため、その分の空白を後ろに詰める。
func PlainText(markup string) string {
	var b strings.Builder
	for _, l := range layout(markup) {
		pad := 0
		switch l.align {
		case alignCenter:
			pad = (Columns - l.width()) / 2
		case alignRight:
			pad = Columns - l.width()
		}
		if pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		for _, s := range l.segs {
			if s.size.width() == 1 {
				b.WriteString(s.text)
				continue
			}
			for _, r := range s.text {
				b.WriteRune(r)
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func layout(markup string) []printLine {
	var lines []printLine
	for _, raw := range strings.Split(strings.TrimRight(markup, "\n"), "\n") {
		raw = strings.TrimRight(raw, " \t\r")
		switch {
		case raw == "":
			lines = append(lines, printLine{})
		case raw == "---":
			lines = append(lines, printLine{segs: []segment{{text: strings.Repeat("-", Columns)}}})
		case strings.Contains(raw, "|"):
			lines = append(lines, columns(raw)...)
		default:
			lines = append(lines, heading(raw))
		}
	}
	return lines
}

// heading は1カラムの行を描画する。行頭の ^^ 以上は中央揃えの見出しとして扱う。
func heading(raw string) printLine {
	carets := leadingCarets(raw)
	align := alignLeft
	if carets >= 2 {
		align = alignCenter
	}
	return printLine{align: align, segs: parseCell(raw)}
}

// columns は "左 | 右" の行を左右揃えで描画する。
// 3カラム以上は2列目以降を右側にまとめる。幅に収まらない場合は右側を次の行に送る。
func columns(raw string) []printLine {
	parts := strings.Split(raw, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	left := parseCell(parts[0])
	right := parseCell(strings.Join(parts[1:], " "))

	l := printLine{segs: left}
	r := printLine{segs: right}
	gap := Columns - l.width() - r.width()
	if gap < 1 {
		r.align = alignRight
		return []printLine{l, r}
	}

	segs := append(left, segment{text: strings.Repeat(" ", gap)})
	return []printLine{{segs: append(segs, right...)}}
}

// parseCell はセルのマークアップを書式付きのセグメントに分解する。
func parseCell(raw string) []segment {
	base := scaleNormal
	switch leadingCarets(raw) {
	case 1:
		base = scaleWide
	case 2:
		base = scaleTall
	case 3:
		base = scaleLarge
	}
	raw = strings.TrimLeft(raw, "^")

	var segs []segment
	var cur strings.Builder
	bold := false
	wide := false

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		size := base
		if wide {
			size |= scaleWide
		}
		segs = append(segs, segment{text: cur.String(), bold: bold, size: size})
		cur.Reset()
	}

	for i := 0; i < len(raw); {
		switch {
		case strings.HasPrefix(raw[i:], "{text:wide}"):
			flush()
			wide = true
			i += len("{text:wide}")
		case strings.HasPrefix(raw[i:], "{text:normal}"):
			flush()
			wide = false
			i += len("{text:normal}")
		case raw[i] == '\\' && i+1 < len(raw):
			cur.WriteByte(raw[i+1])
			i += 2
		case raw[i] == '*':
			flush()
			bold = !bold
			i++
		default:
			cur.WriteByte(raw[i])
			i++
		}
	}
	flush()
	return segs
}

func leadingCarets(s string) int {
	n := 0
	for n < len(s) && n < 3 && s[n] == '^' {
		n++
	}
	return n
}
