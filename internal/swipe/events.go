package swipe

import (
	"time"

	"github.com/hitoshi/newsswiper/internal/model"
)

// Event はStepに入力されるイベント。
type Event interface {
	isEvent()
}

// PointerDown はマウスダウン／最初のタッチポイントの開始を表す。
type PointerDown struct{ X, Y float64 }

// PointerMove はポインタの移動を表す。
type PointerMove struct{ X, Y float64 }

// PointerUp はポインタのリリースを表す。マウスがカード外に出た場合もこれに含む。
type PointerUp struct{}

// ButtonSwipe はスキップ／保存ボタンによるスワイプを表す。
type ButtonSwipe struct{ Direction Direction }

// SettleElapsed はコミット後の待機時間の経過を表す。
// Tokenが保留中のコミットと一致しない場合は無視される。
type SettleElapsed struct{ Token uint64 }

// Reload はデッキの再読み込み要求を表す。
type Reload struct{}

// Loaded はデッキ用の記事取得が完了したことを表す。
type Loaded struct{ Items []model.NewsItem }

// LoadFailed はデッキ用の記事取得に失敗したことを表す。
type LoadFailed struct{ Err error }

// RecordFinished はActionSink呼び出しの完了を表す。
type RecordFinished struct {
	ItemID  int64
	Action  model.SwipeAction
	Outcome Outcome
	Err     error
}

// SetRecording はActionSink呼び出しの有効／無効の切り替えを表す。
type SetRecording struct{ Enabled bool }

func (PointerDown) isEvent()    {}
func (PointerMove) isEvent()    {}
func (PointerUp) isEvent()      {}
func (ButtonSwipe) isEvent()    {}
func (SettleElapsed) isEvent()  {}
func (Reload) isEvent()         {}
func (Loaded) isEvent()         {}
func (LoadFailed) isEvent()     {}
func (RecordFinished) isEvent() {}
func (SetRecording) isEvent()   {}

// Effect はStepが返す副作用コマンド。Sessionが実行する。
type Effect interface {
	isEffect()
}

// FetchItems はデッキ用の記事取得を要求する。
type FetchItems struct{ PageSize int }

// RecordAction はActionSinkへの記録を要求する。
type RecordAction struct {
	Item   model.NewsItem
	Action model.SwipeAction
}

// ScheduleSettle は待機タイマーの開始を要求する。
type ScheduleSettle struct {
	Token uint64
	Delay time.Duration
}

// ShowTransform はドラッグ中のカードへの変換適用を表す。
type ShowTransform struct{ Transform Transform }

// ResetTransform はカード位置のリセットを表す。
type ResetTransform struct{}

// MarkSwiped はカードの退場アニメーション開始を表す。
type MarkSwiped struct{ Direction Direction }

// RenderItem は現在のカードの描画を表す。
type RenderItem struct {
	Item  model.NewsItem
	Index int
	Total int
}

// RenderExhausted はデッキを使い切ったことの描画を表す。
type RenderExhausted struct{}

// RenderError は記事を表示できないことの描画を表す。
type RenderError struct{ Message string }

// NotifyLevel は通知の種別。
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifySuccess NotifyLevel = "success"
	NotifyError   NotifyLevel = "error"
)

// Notify は一時的な通知の表示を表す。
type Notify struct {
	Level   NotifyLevel
	Message string
}

func (FetchItems) isEffect()      {}
func (RecordAction) isEffect()    {}
func (ScheduleSettle) isEffect()  {}
func (ShowTransform) isEffect()   {}
func (ResetTransform) isEffect()  {}
func (MarkSwiped) isEffect()      {}
func (RenderItem) isEffect()      {}
func (RenderExhausted) isEffect() {}
func (RenderError) isEffect()     {}
func (Notify) isEffect()          {}
