// Package swipe はカードスワイプのジェスチャー判定とアクション実行パイプラインを提供する。
//
// 判定ロジックは状態値と純粋な遷移関数 Step に閉じており、
// タイマー・ActionSink呼び出し・描画といった副作用は Effect として返される。
// Effect の実行は Session が単一のgoroutine上で行う。
package swipe

import "math"

const (
	// DefaultThreshold はコミット判定に使う水平移動量（px）のデフォルト値。
	DefaultThreshold = 100.0

	// verticalDamping はカードの縦方向追従の減衰率。
	verticalDamping = 0.1
	// maxTiltDeg は移動量がしきい値と等しいときのカードの傾き（度）。
	maxTiltDeg = 20.0
)

// Direction はスワイプの判定結果を表す。
type Direction int

const (
	// DirectionNone はしきい値未満のリリース（リセット）を表す。
	DirectionNone Direction = iota
	// DirectionLeft は左方向へのコミット（スキップ）を表す。
	DirectionLeft
	// DirectionRight は右方向へのコミット（保存）を表す。
	DirectionRight
)

// String は方向の文字列表現を返す。
func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return "none"
	}
}

// ParseDirection は "left" / "right" を Direction に変換する。
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "left":
		return DirectionLeft, true
	case "right":
		return DirectionRight, true
	default:
		return DirectionNone, false
	}
}

// DragState はひとつのジェスチャーの座標を保持する。
// ポインタダウンで生成され、リリース時に必ず破棄される。
type DragState struct {
	OriginX, OriginY   float64
	CurrentX, CurrentY float64
	Active             bool
}

// Delta は原点からの移動量を返す。
func (d DragState) Delta() (dx, dy float64) {
	return d.CurrentX - d.OriginX, d.CurrentY - d.OriginY
}

// Transform はドラッグ中のカードに適用する見た目上の変換。
// 判定ロジックには一切影響しない。
type Transform struct {
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
	RotateDeg  float64 `json:"rotate_deg"`
}

// Tracker はポインタ入力をドラッグベクトルに変換し、リリース時に方向を判定する。
// 座標の単位には依存しない（マウスでもタッチでも同じ値で判定する）。
type Tracker struct {
	threshold float64
	drag      DragState
}

// NewTracker はしきい値を指定してTrackerを生成する。
// 0以下またはNaNの場合はDefaultThresholdを使用する。
func NewTracker(threshold float64) Tracker {
	if !(threshold > 0) || math.IsInf(threshold, 0) {
		threshold = DefaultThreshold
	}
	return Tracker{threshold: threshold}
}

// Threshold は判定しきい値を返す。
func (t Tracker) Threshold() float64 {
	return t.threshold
}

// Active はドラッグ中かどうかを返す。
func (t Tracker) Active() bool {
	return t.drag.Active
}

// Drag は現在のドラッグ状態を返す。
func (t Tracker) Drag() DragState {
	return t.drag
}

// Begin はドラッグを開始する。
// すでにドラッグ中の場合は最初のジェスチャーを優先し、falseを返す。
func (t *Tracker) Begin(x, y float64) bool {
	if t.drag.Active {
		return false
	}
	t.drag = DragState{
		OriginX:  x,
		OriginY:  y,
		CurrentX: x,
		CurrentY: y,
		Active:   true,
	}
	return true
}

// Update は現在座標を更新し、カードに適用する変換を返す。
// ドラッグしていない場合はfalseを返す。
func (t *Tracker) Update(x, y float64) (Transform, bool) {
	if !t.drag.Active {
		return Transform{}, false
	}
	t.drag.CurrentX = x
	t.drag.CurrentY = y

	dx, dy := t.drag.Delta()
	return Transform{
		TranslateX: dx,
		TranslateY: dy * verticalDamping,
		RotateDeg:  dx / t.threshold * maxTiltDeg,
	}, true
}

// End はドラッグを終了し、方向を判定する。
// |dx| がしきい値を超えた場合のみコミット方向を返し、それ以外はDirectionNoneを返す。
// ドラッグの有無にかかわらず、呼び出し後はドラッグ状態が閉じられる。
func (t *Tracker) End() (Direction, bool) {
	if !t.drag.Active {
		return DirectionNone, false
	}
	dx, _ := t.drag.Delta()
	t.drag = DragState{}

	if math.Abs(dx) <= t.threshold {
		return DirectionNone, true
	}
	if dx > 0 {
		return DirectionRight, true
	}
	return DirectionLeft, true
}

// Cancel は判定せずにドラッグを破棄する。
func (t *Tracker) Cancel() {
	t.drag = DragState{}
}
