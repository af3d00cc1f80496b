package swipe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/newsswiper/internal/model"
)

const waitTimeout = 2 * time.Second

// fakeTimer は手動で発火させるタイマー。
type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (t *fakeTimer) Fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.f()
}

func (t *fakeTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeClock は予約されたタイマーをチャネルに流す。
type fakeClock struct {
	scheduled chan *fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{scheduled: make(chan *fakeTimer, 16)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, f: f}
	c.scheduled <- t
	return t
}

type fakePresenter struct {
	effects chan Effect
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{effects: make(chan Effect, 64)}
}

func (p *fakePresenter) Present(_ context.Context, eff Effect) error {
	p.effects <- eff
	return nil
}

type mockLoader struct {
	loadFn func(ctx context.Context, perPage int) ([]model.NewsItem, error)
}

func (m *mockLoader) LoadItems(ctx context.Context, perPage int) ([]model.NewsItem, error) {
	return m.loadFn(ctx, perPage)
}

type recordCall struct {
	item   model.NewsItem
	action model.SwipeAction
}

type mockSink struct {
	calls    chan recordCall
	recordFn func(ctx context.Context, item model.NewsItem, action model.SwipeAction) (Outcome, error)
}

func newMockSink(fn func(ctx context.Context, item model.NewsItem, action model.SwipeAction) (Outcome, error)) *mockSink {
	return &mockSink{calls: make(chan recordCall, 16), recordFn: fn}
}

func (m *mockSink) Record(ctx context.Context, item model.NewsItem, action model.SwipeAction) (Outcome, error) {
	m.calls <- recordCall{item: item, action: action}
	return m.recordFn(ctx, item, action)
}

type mockRecorder struct {
	mu       sync.Mutex
	swipes   []string
	outcomes []string
}

func (r *mockRecorder) RecordSwipe(direction string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swipes = append(r.swipes, direction)
}

func (r *mockRecorder) RecordSinkOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func staticLoader(items []model.NewsItem) *mockLoader {
	return &mockLoader{loadFn: func(context.Context, int) ([]model.NewsItem, error) {
		return items, nil
	}}
}

func successSink() *mockSink {
	return newMockSink(func(context.Context, model.NewsItem, model.SwipeAction) (Outcome, error) {
		return Outcome{Success: true, Message: "Receipt printed successfully"}, nil
	})
}

// waitEffect は条件に一致するEffectが届くまで、それ以外のEffectを読み飛ばす。
func waitEffect(t *testing.T, p *fakePresenter, match func(Effect) bool) Effect {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case eff := <-p.effects:
			if match(eff) {
				return eff
			}
		case <-deadline:
			t.Fatal("timed out waiting for effect")
			return nil
		}
	}
}

func waitRender(t *testing.T, p *fakePresenter) RenderItem {
	t.Helper()
	eff := waitEffect(t, p, func(e Effect) bool { _, ok := e.(RenderItem); return ok })
	return eff.(RenderItem)
}

func waitExhausted(t *testing.T, p *fakePresenter) {
	t.Helper()
	waitEffect(t, p, func(e Effect) bool { _, ok := e.(RenderExhausted); return ok })
}

func waitNotify(t *testing.T, p *fakePresenter, level NotifyLevel) Notify {
	t.Helper()
	eff := waitEffect(t, p, func(e Effect) bool { n, ok := e.(Notify); return ok && n.Level == level })
	return eff.(Notify)
}

func waitTimer(t *testing.T, c *fakeClock) *fakeTimer {
	t.Helper()
	select {
	case tm := <-c.scheduled:
		return tm
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for settle timer")
		return nil
	}
}

func waitCall(t *testing.T, s *mockSink) recordCall {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for sink call")
		return recordCall{}
	}
}

// startSession はセッションを起動し、終了待ち用のチャネルを返す。
func startSession(t *testing.T, s *Session) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func sendDrag(t *testing.T, s *Session, dx float64) {
	t.Helper()
	ctx := context.Background()
	for _, ev := range []Event{PointerDown{X: 0, Y: 0}, PointerMove{X: dx, Y: 0}, PointerUp{}} {
		if err := s.Send(ctx, ev); err != nil {
			t.Fatalf("Send(%T) failed: %v", ev, err)
		}
	}
}

func TestSession_SwipeThroughDeck(t *testing.T) {
	clock := newFakeClock()
	presenter := newFakePresenter()
	sink := successSink()
	rec := &mockRecorder{}

	s := NewSession(Config{Threshold: 100, RecordingEnabled: true},
		staticLoader(testItems("A", "B")), sink, presenter,
		WithClock(clock), WithRecorder(rec))
	startSession(t, s)

	if r := waitRender(t, presenter); r.Item.Title != "A" {
		t.Fatalf("最初のカード = %q, want A", r.Item.Title)
	}

	sendDrag(t, s, 150)
	call := waitCall(t, sink)
	if call.item.Title != "A" || call.action != model.ActionSave {
		t.Errorf("sink call = %+v, want (A, save)", call)
	}
	timer := waitTimer(t, clock)
	if timer.delay != DefaultSettleDelay {
		t.Errorf("settle delay = %v, want %v", timer.delay, DefaultSettleDelay)
	}
	waitNotify(t, presenter, NotifySuccess)
	timer.Fire()
	if r := waitRender(t, presenter); r.Item.Title != "B" || r.Index != 1 {
		t.Fatalf("render = %+v, want B at 1", r)
	}

	sendDrag(t, s, -120)
	call = waitCall(t, sink)
	if call.item.Title != "B" || call.action != model.ActionSkip {
		t.Errorf("sink call = %+v, want (B, skip)", call)
	}
	waitTimer(t, clock).Fire()
	waitExhausted(t, presenter)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.swipes) != 2 || rec.swipes[0] != "right" || rec.swipes[1] != "left" {
		t.Errorf("recorded swipes = %v", rec.swipes)
	}
}

func TestSession_SinkFailureStillAdvances(t *testing.T) {
	clock := newFakeClock()
	presenter := newFakePresenter()
	sink := newMockSink(func(context.Context, model.NewsItem, model.SwipeAction) (Outcome, error) {
		return Outcome{}, errors.New("printer exploded")
	})

	s := NewSession(Config{RecordingEnabled: true}, staticLoader(testItems("A", "B")), sink, presenter, WithClock(clock))
	startSession(t, s)
	waitRender(t, presenter)

	sendDrag(t, s, 200)
	waitCall(t, sink)
	if n := waitNotify(t, presenter, NotifyError); n.Message != "Receipt printing error" {
		t.Errorf("notification = %q", n.Message)
	}
	waitTimer(t, clock).Fire()

	if r := waitRender(t, presenter); r.Item.Title != "B" {
		t.Errorf("render = %q, want B", r.Item.Title)
	}
}

func TestSession_HangingSinkDoesNotBlockDeck(t *testing.T) {
	clock := newFakeClock()
	presenter := newFakePresenter()
	release := make(chan struct{})
	sink := newMockSink(func(ctx context.Context, _ model.NewsItem, _ model.SwipeAction) (Outcome, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return Outcome{Success: true}, nil
	})
	defer close(release)

	s := NewSession(Config{RecordingEnabled: true}, staticLoader(testItems("A", "B", "C")), sink, presenter, WithClock(clock))
	startSession(t, s)
	waitRender(t, presenter)

	sendDrag(t, s, 150)
	waitCall(t, sink)
	waitTimer(t, clock).Fire()
	if r := waitRender(t, presenter); r.Item.Title != "B" {
		t.Fatalf("render = %q, want B", r.Item.Title)
	}

	sendDrag(t, s, 150)
	waitCall(t, sink)
	waitTimer(t, clock).Fire()
	if r := waitRender(t, presenter); r.Item.Title != "C" {
		t.Fatalf("render = %q, want C", r.Item.Title)
	}
}

func TestSession_CancelAbandonsInFlightSinkCall(t *testing.T) {
	clock := newFakeClock()
	presenter := newFakePresenter()
	rec := &mockRecorder{}
	abandoned := make(chan struct{})
	sink := newMockSink(func(ctx context.Context, _ model.NewsItem, _ model.SwipeAction) (Outcome, error) {
		<-ctx.Done()
		close(abandoned)
		return Outcome{Success: true, Message: "printed after teardown"}, nil
	})

	s := NewSession(Config{RecordingEnabled: true}, staticLoader(testItems("A", "B")), sink, presenter,
		WithClock(clock), WithRecorder(rec))
	cancel, errCh := startSession(t, s)
	waitRender(t, presenter)

	sendDrag(t, s, 150)
	waitCall(t, sink)
	waitTimer(t, clock)
	// コミット時の通知は読み捨てる
	for len(presenter.effects) > 0 {
		<-presenter.effects
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return while the sink call was in flight")
	}
	select {
	case <-abandoned:
	case <-time.After(waitTimeout):
		t.Fatal("sink did not observe ctx.Done()")
	}

	select {
	case eff := <-presenter.effects:
		t.Errorf("終了後にEffectが描画された: %#v", eff)
	case <-time.After(100 * time.Millisecond):
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.outcomes) != 0 {
		t.Errorf("破棄した記録の結果が集計された: %v", rec.outcomes)
	}
}

func TestSession_RecordingDisabled(t *testing.T) {
	clock := newFakeClock()
	presenter := newFakePresenter()
	sink := successSink()

	s := NewSession(Config{RecordingEnabled: false}, staticLoader(testItems("A", "B")), sink, presenter, WithClock(clock))
	startSession(t, s)
	waitRender(t, presenter)

	sendDrag(t, s, 150)
	waitTimer(t, clock).Fire()
	waitRender(t, presenter)

	select {
	case c := <-sink.calls:
		t.Errorf("記録無効時にsinkが呼ばれた: %+v", c)
	default:
	}
}

func TestSession_LoadFailure(t *testing.T) {
	presenter := newFakePresenter()
	loader := &mockLoader{loadFn: func(context.Context, int) ([]model.NewsItem, error) {
		return nil, errors.New("connection refused")
	}}

	s := NewSession(Config{}, loader, nil, presenter, WithClock(newFakeClock()))
	startSession(t, s)

	eff := waitEffect(t, presenter, func(e Effect) bool { _, ok := e.(RenderError); return ok })
	if msg := eff.(RenderError).Message; msg != "Failed to load news" {
		t.Errorf("message = %q", msg)
	}
}

func TestSession_PageSizePassedToLoader(t *testing.T) {
	got := make(chan int, 1)
	loader := &mockLoader{loadFn: func(_ context.Context, perPage int) ([]model.NewsItem, error) {
		got <- perPage
		return nil, nil
	}}

	s := NewSession(Config{PageSize: 7}, loader, nil, newFakePresenter(), WithClock(newFakeClock()))
	startSession(t, s)

	select {
	case n := <-got:
		if n != 7 {
			t.Errorf("perPage = %d, want 7", n)
		}
	case <-time.After(waitTimeout):
		t.Fatal("loader was not called")
	}
}

func TestSession_CancelStopsPendingTimer(t *testing.T) {
	clock := newFakeClock()
	presenter := newFakePresenter()

	s := NewSession(Config{}, staticLoader(testItems("A", "B")), nil, presenter, WithClock(clock))
	cancel, errCh := startSession(t, s)
	waitRender(t, presenter)

	sendDrag(t, s, 150)
	timer := waitTimer(t, clock)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancel")
	}

	if !timer.Stopped() {
		t.Error("保留中のタイマーが停止されていない")
	}
	// 停止後に発火しても結果は破棄される
	timer.Fire()

	if err := s.Send(context.Background(), Reload{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send() after close error = %v, want ErrSessionClosed", err)
	}
}

func TestSession_SendHonorsContext(t *testing.T) {
	s := NewSession(Config{}, staticLoader(nil), nil, newFakePresenter(), WithClock(newFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, Reload{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}

func TestSession_IDIsUnique(t *testing.T) {
	a := NewSession(Config{}, staticLoader(nil), nil, newFakePresenter())
	b := NewSession(Config{}, staticLoader(nil), nil, newFakePresenter())
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("IDs = %q, %q", a.ID(), b.ID())
	}
}
