package swipe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsswiper/internal/model"
)

// ErrSessionClosed はRunが終了したセッションにイベントを送信した場合のエラー。
var ErrSessionClosed = errors.New("swipe session closed")

// Presenter は描画・通知系のEffectを受け取る表示層。
// Runのgoroutineからのみ呼び出される。
type Presenter interface {
	Present(ctx context.Context, eff Effect) error
}

// Timer は停止可能なタイマー。*time.Timerが満たす。
type Timer interface {
	Stop() bool
}

// Clock は待機タイマーの生成を抽象化する。テストで差し替える。
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Recorder はスワイプとActionSink結果のメトリクスを記録する。
type Recorder interface {
	RecordSwipe(direction string)
	RecordSinkOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSwipe(string)       {}
func (nopRecorder) RecordSinkOutcome(string) {}

// Session はStepが返すEffectを実行するシェル。
// 状態はRunのgoroutineだけが読み書きするため、ロックは持たない。
// ActionSink呼び出しと記事取得は別goroutineで実行し、結果はイベントとしてループに戻す。
type Session struct {
	id        string
	loader    Loader
	sink      ActionSink
	presenter Presenter
	clock     Clock
	logger    *slog.Logger
	recorder  Recorder

	events chan Event
	done   chan struct{}

	state  State
	timers map[uint64]Timer
}

// Option はSessionの任意設定。
type Option func(*Session)

// WithClock はタイマー生成に使うClockを指定する。
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger はロガーを指定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRecorder はメトリクスの記録先を指定する。
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// NewSession は新しいSessionを生成する。sinkがnilの場合は記録を行わない。
func NewSession(cfg Config, loader Loader, sink ActionSink, presenter Presenter, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		loader:    loader,
		sink:      sink,
		presenter: presenter,
		clock:     realClock{},
		logger:    slog.Default(),
		recorder:  nopRecorder{},
		events:    make(chan Event),
		done:      make(chan struct{}),
		state:     NewState(cfg),
		timers:    make(map[uint64]Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("session_id", s.id))
	return s
}

// ID はセッションIDを返す。
func (s *Session) ID() string {
	return s.id
}

// Send は入力イベントをループに送る。
func (s *Session) Send(ctx context.Context, ev Event) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post は内部のgoroutineからループにイベントを戻す。
// セッション終了後の結果は破棄する。
func (s *Session) post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run はデッキを読み込み、ctxがキャンセルされるまでイベントを処理する。
// 終了時は保留中のタイマーを停止し、実行中のActionSink呼び出しの結果は破棄する。
// 1つのSessionにつき1回だけ呼び出すこと。
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.stopTimers()

	s.logger.Info("スワイプセッションを開始しました")

	if err := s.apply(ctx, Reload{}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スワイプセッションを終了しました",
				slog.Int("cursor", s.state.Deck.Cursor()),
				slog.Int("total", s.state.Deck.Len()),
			)
			return nil
		case ev := <-s.events:
			if err := s.apply(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// apply はイベントをStepに適用し、返されたEffectを順に実行する。
func (s *Session) apply(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case SettleElapsed:
		delete(s.timers, e.Token)
	case RecordFinished:
		s.observeRecord(e)
	case LoadFailed:
		s.logger.Error("記事の読み込みに失敗しました", slog.String("error", e.Err.Error()))
	}

	prev := s.state.Phase
	next, effects := Step(s.state, ev)
	s.state = next
	if next.Phase != prev {
		s.logger.Debug("スワイプ状態が遷移しました",
			slog.String("from", prev.String()),
			slog.String("to", next.Phase.String()),
		)
	}

	for _, eff := range effects {
		if err := s.execute(ctx, eff); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) execute(ctx context.Context, eff Effect) error {
	switch e := eff.(type) {
	case FetchItems:
		go s.load(ctx, e.PageSize)
		return nil
	case RecordAction:
		if s.sink != nil {
			go s.record(ctx, e.Item, e.Action)
		}
		return nil
	case ScheduleSettle:
		token := e.Token
		s.timers[token] = s.clock.AfterFunc(e.Delay, func() {
			s.post(SettleElapsed{Token: token})
		})
		return nil
	case MarkSwiped:
		s.recorder.RecordSwipe(e.Direction.String())
	}

	return s.presenter.Present(ctx, eff)
}

func (s *Session) load(ctx context.Context, perPage int) {
	items, err := s.loader.LoadItems(ctx, perPage)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.post(LoadFailed{Err: err})
		return
	}
	s.post(Loaded{Items: items})
}

func (s *Session) record(ctx context.Context, item model.NewsItem, action model.SwipeAction) {
	outcome, err := s.sink.Record(ctx, item, action)
	if ctx.Err() != nil {
		return
	}
	s.post(RecordFinished{
		ItemID:  item.ID,
		Action:  action,
		Outcome: outcome,
		Err:     err,
	})
}

func (s *Session) observeRecord(e RecordFinished) {
	switch {
	case e.Err != nil:
		s.recorder.RecordSinkOutcome("error")
		s.logger.Warn("スワイプ結果の記録に失敗しました",
			slog.Int64("item_id", e.ItemID),
			slog.String("action", string(e.Action)),
			slog.String("error", e.Err.Error()),
		)
	case !e.Outcome.Success:
		s.recorder.RecordSinkOutcome("failure")
		s.logger.Warn("スワイプ結果の記録が拒否されました",
			slog.Int64("item_id", e.ItemID),
			slog.String("action", string(e.Action)),
			slog.String("message", e.Outcome.Message),
		)
	case e.Outcome.Degraded():
		s.recorder.RecordSinkOutcome("warning")
	default:
		s.recorder.RecordSinkOutcome("success")
	}
}

func (s *Session) stopTimers() {
	for token, t := range s.timers {
		t.Stop()
		delete(s.timers, token)
	}
}
