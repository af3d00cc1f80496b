package swipe

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/hitoshi/newsswiper/internal/model"
)

// 描画フレームの種別。
const (
	FrameRender    = "render"
	FrameExhausted = "exhausted"
	FrameError     = "error"
	FrameTransform = "transform"
	FrameReset     = "reset"
	FrameSwiped    = "swiped"
	FrameNotify    = "notify"
)

// Frame は表示系Effectのシリアライズ表現。
type Frame struct {
	Type      string                 `json:"type"`
	Item      *model.NewsItemPayload `json:"item,omitempty"`
	Progress  *Progress              `json:"progress,omitempty"`
	Transform *Transform             `json:"transform,omitempty"`
	Direction string                 `json:"direction,omitempty"`
	Level     NotifyLevel            `json:"level,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Progress はデッキ内の現在位置。
type Progress struct {
	Index int `json:"index"`
	Total int `json:"total"`
}

// FrameOf はEffectをFrameに変換する。表示に関係しないEffectはfalseを返す。
func FrameOf(eff Effect) (Frame, bool) {
	switch e := eff.(type) {
	case RenderItem:
		p := e.Item.Payload()
		return Frame{
			Type:     FrameRender,
			Item:     &p,
			Progress: &Progress{Index: e.Index, Total: e.Total},
		}, true
	case RenderExhausted:
		return Frame{Type: FrameExhausted, Message: "No more news!"}, true
	case RenderError:
		return Frame{Type: FrameError, Message: e.Message}, true
	case ShowTransform:
		tf := e.Transform
		return Frame{Type: FrameTransform, Transform: &tf}, true
	case ResetTransform:
		return Frame{Type: FrameReset}, true
	case MarkSwiped:
		return Frame{Type: FrameSwiped, Direction: e.Direction.String()}, true
	case Notify:
		return Frame{Type: FrameNotify, Level: e.Level, Message: e.Message}, true
	default:
		return Frame{}, false
	}
}

// JSONPresenter はFrameを1行1JSONで書き出すPresenter。
type JSONPresenter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONPresenter はwへ書き出すJSONPresenterを生成する。
func NewJSONPresenter(w io.Writer) *JSONPresenter {
	return &JSONPresenter{enc: json.NewEncoder(w)}
}

// Present はEffectをFrameとして書き出す。
func (p *JSONPresenter) Present(_ context.Context, eff Effect) error {
	f, ok := FrameOf(eff)
	if !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(f)
}
