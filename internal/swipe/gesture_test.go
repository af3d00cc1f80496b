package swipe

import (
	"math"
	"testing"
)

func TestNewTracker_InvalidThresholdFallsBackToDefault(t *testing.T) {
	for _, v := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		tr := NewTracker(v)
		if tr.Threshold() != DefaultThreshold {
			t.Errorf("NewTracker(%v).Threshold() = %v, want %v", v, tr.Threshold(), DefaultThreshold)
		}
	}
}

func TestTracker_BeginWhileActiveKeepsFirstGesture(t *testing.T) {
	tr := NewTracker(100)
	if !tr.Begin(10, 20) {
		t.Fatal("最初のBeginはtrueを返すべき")
	}
	if tr.Begin(500, 500) {
		t.Error("ドラッグ中のBeginはfalseを返すべき")
	}

	d := tr.Drag()
	if d.OriginX != 10 || d.OriginY != 20 {
		t.Errorf("origin = (%v, %v), want (10, 20)", d.OriginX, d.OriginY)
	}
}

func TestTracker_UpdateWithoutDragIsNoop(t *testing.T) {
	tr := NewTracker(100)
	if _, ok := tr.Update(50, 50); ok {
		t.Error("ドラッグなしのUpdateはfalseを返すべき")
	}
	if tr.Active() {
		t.Error("Updateでドラッグが開始されてはならない")
	}
}

func TestTracker_UpdateReturnsTransform(t *testing.T) {
	tr := NewTracker(100)
	tr.Begin(100, 100)

	tf, ok := tr.Update(150, 200)
	if !ok {
		t.Fatal("Update returned false")
	}
	if tf.TranslateX != 50 {
		t.Errorf("TranslateX = %v, want 50", tf.TranslateX)
	}
	if tf.TranslateY != 10 {
		t.Errorf("TranslateY = %v, want 10 (dy × 0.1)", tf.TranslateY)
	}
	if tf.RotateDeg != 10 {
		t.Errorf("RotateDeg = %v, want 10 ((dx/threshold) × 20)", tf.RotateDeg)
	}
}

func TestTracker_End(t *testing.T) {
	tests := []struct {
		name string
		dx   float64
		want Direction
	}{
		{"しきい値を超える右方向", 150, DirectionRight},
		{"しきい値を超える左方向", -120, DirectionLeft},
		{"しきい値ちょうどはリセット", 100, DirectionNone},
		{"負のしきい値ちょうどはリセット", -100, DirectionNone},
		{"しきい値未満", 40, DirectionNone},
		{"移動なし", 0, DirectionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(100)
			tr.Begin(0, 0)
			tr.Update(tt.dx, 300)

			got, ok := tr.End()
			if !ok {
				t.Fatal("End returned false for an open drag")
			}
			if got != tt.want {
				t.Errorf("End() = %v, want %v", got, tt.want)
			}
			if tr.Active() {
				t.Error("End後にドラッグが残っている")
			}
		})
	}
}

func TestTracker_EndWithoutDragIsNoop(t *testing.T) {
	tr := NewTracker(100)
	if dir, ok := tr.End(); ok || dir != DirectionNone {
		t.Errorf("End() = (%v, %v), want (none, false)", dir, ok)
	}
}

func TestTracker_ThresholdIsUnitAgnostic(t *testing.T) {
	// 同じ比率の移動は座標系のスケールに関係なく同じ判定になる
	small := NewTracker(10)
	small.Begin(0, 0)
	small.Update(11, 0)

	large := NewTracker(1000)
	large.Begin(0, 0)
	large.Update(1100, 0)

	a, _ := small.End()
	b, _ := large.End()
	if a != DirectionRight || b != DirectionRight {
		t.Errorf("got (%v, %v), want (right, right)", a, b)
	}
}

func TestParseDirection(t *testing.T) {
	if d, ok := ParseDirection("left"); !ok || d != DirectionLeft {
		t.Errorf("ParseDirection(left) = (%v, %v)", d, ok)
	}
	if d, ok := ParseDirection("right"); !ok || d != DirectionRight {
		t.Errorf("ParseDirection(right) = (%v, %v)", d, ok)
	}
	if _, ok := ParseDirection("up"); ok {
		t.Error("ParseDirection(up) should fail")
	}
}
