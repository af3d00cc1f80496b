package swipe

import "time"

const (
	// DefaultSettleDelay はコミットからカーソル前進までの待機時間のデフォルト値。
	DefaultSettleDelay = 300 * time.Millisecond
	// DefaultPageSize はデッキに読み込む記事数のデフォルト値。
	DefaultPageSize = 20
)

// Phase はスワイプコントローラの状態。
type Phase int

const (
	// PhaseIdle は現在のカードが表示され、入力待ちの状態。
	PhaseIdle Phase = iota
	// PhaseDragging はドラッグ中の状態。
	PhaseDragging
	// PhaseCommitting はコミット後の待機時間中の状態。新しいドラッグは受け付けない。
	PhaseCommitting
	// PhaseExhausted はデッキを使い切った状態。再読み込みまで入力を受け付けない。
	PhaseExhausted
)

// String は状態名を返す。
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	case PhaseCommitting:
		return "committing"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Config はスワイプコントローラの設定。
type Config struct {
	Threshold        float64       // コミット判定しきい値（px）
	SettleDelay      time.Duration // コミットからカーソル前進までの待機時間
	PageSize         int           // 読み込み件数
	RecordingEnabled bool          // ActionSinkを呼び出すかどうか
}

// State はスワイプコントローラの状態値。
// Stepのみが更新し、呼び出し側は値として受け渡す。
type State struct {
	Phase   Phase
	Tracker Tracker
	Deck    Deck

	settleDelay time.Duration
	pageSize    int
	recording   bool

	// seq はコミットごとに発行するタイマートークンの連番。
	seq uint64
	// pending は保留中のコミットのトークン。0は保留なし。
	pending uint64
}

// NewState は設定から初期状態を生成する。
// 読み込み前のデッキは空のため、初期状態はPhaseExhaustedとなる。
func NewState(cfg Config) State {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return State{
		Phase:       PhaseExhausted,
		Tracker:     NewTracker(cfg.Threshold),
		settleDelay: cfg.SettleDelay,
		pageSize:    cfg.PageSize,
		recording:   cfg.RecordingEnabled,
	}
}

// Recording はActionSinkの呼び出しが有効かどうかを返す。
func (s State) Recording() bool {
	return s.recording
}

// PendingToken は保留中のコミットのトークンを返す。保留がない場合は0。
func (s State) PendingToken() uint64 {
	return s.pending
}

// Step はイベントを1つ適用し、次の状態と実行すべき副作用を返す。
// 順序外のイベント（ドラッグなしのmove/upなど）は何もせず同じ状態を返す。
func Step(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case PointerDown:
		return s.begin(e.X, e.Y)
	case PointerMove:
		return s.move(e.X, e.Y)
	case PointerUp:
		return s.release()
	case ButtonSwipe:
		if s.Phase != PhaseIdle || e.Direction == DirectionNone {
			return s, nil
		}
		return s.commit(e.Direction)
	case SettleElapsed:
		return s.settle(e.Token)
	case Reload:
		return s, []Effect{FetchItems{PageSize: s.pageSize}}
	case Loaded:
		s.Tracker.Cancel()
		s.pending = 0
		s.Deck = NewDeck(e.Items)
		return s.render()
	case LoadFailed:
		s.Tracker.Cancel()
		s.pending = 0
		s.Deck = NewDeck(nil)
		s.Phase = PhaseExhausted
		return s, []Effect{RenderError{Message: "Failed to load news"}}
	case RecordFinished:
		return s, []Effect{notificationFor(e)}
	case SetRecording:
		s.recording = e.Enabled
		msg := "Receipt printing disabled"
		if e.Enabled {
			msg = "Receipt printing enabled"
		}
		return s, []Effect{Notify{Level: NotifyInfo, Message: msg}}
	}
	return s, nil
}

func (s State) begin(x, y float64) (State, []Effect) {
	if s.Phase != PhaseIdle || s.Deck.Exhausted() {
		return s, nil
	}
	if !s.Tracker.Begin(x, y) {
		return s, nil
	}
	s.Phase = PhaseDragging
	return s, nil
}

func (s State) move(x, y float64) (State, []Effect) {
	if s.Phase != PhaseDragging {
		return s, nil
	}
	tf, ok := s.Tracker.Update(x, y)
	if !ok {
		return s, nil
	}
	return s, []Effect{ShowTransform{Transform: tf}}
}

func (s State) release() (State, []Effect) {
	if s.Phase != PhaseDragging {
		return s, nil
	}
	dir, ok := s.Tracker.End()
	if !ok || dir == DirectionNone {
		s.Phase = PhaseIdle
		return s, []Effect{ResetTransform{}}
	}
	return s.commit(dir)
}

// commit は現在のカードに対する判定を確定する。
// ActionSinkの結果を待たずに待機タイマーを予約する。
func (s State) commit(dir Direction) (State, []Effect) {
	item, ok := s.Deck.Current()
	if !ok {
		s.Phase = PhaseExhausted
		return s, []Effect{RenderExhausted{}}
	}

	s.seq++
	s.pending = s.seq
	s.Phase = PhaseCommitting

	effects := []Effect{MarkSwiped{Direction: dir}}
	if s.recording {
		effects = append(effects,
			Notify{Level: NotifyInfo, Message: "Printing receipt..."},
			RecordAction{Item: item, Action: dir.Action()},
		)
	}
	effects = append(effects, ScheduleSettle{Token: s.pending, Delay: s.settleDelay})
	return s, effects
}

func (s State) settle(token uint64) (State, []Effect) {
	if s.Phase != PhaseCommitting || token == 0 || token != s.pending {
		return s, nil
	}
	s.pending = 0
	s.Deck.Advance()
	return s.render()
}

func (s State) render() (State, []Effect) {
	item, ok := s.Deck.Current()
	if !ok {
		s.Phase = PhaseExhausted
		return s, []Effect{RenderExhausted{}}
	}
	s.Phase = PhaseIdle
	return s, []Effect{RenderItem{Item: item, Index: s.Deck.Cursor(), Total: s.Deck.Len()}}
}
