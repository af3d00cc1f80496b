package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/newsswiper/internal/swipe"
)

// ErrDrainTimeout は保留中のコミットや記録がdrain時間内に完了しなかった場合のエラー。
var ErrDrainTimeout = errors.New("保留中の処理が時間内に完了しませんでした")

// Summary はリプレイの集計結果。
type Summary struct {
	Swipes   map[string]int // 方向別のコミット数
	Outcomes map[string]int // 結果別のActionSink呼び出し数
}

// Runner はスクリプトをスワイプセッションで実行する。
type Runner struct {
	loader swipe.Loader
	sink   swipe.ActionSink
	out    io.Writer
	logger *slog.Logger
}

// NewRunner はRunnerを生成する。フレームは1行1JSONでoutに書き出す。
func NewRunner(loader swipe.Loader, sink swipe.ActionSink, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{
		loader: loader,
		sink:   sink,
		out:    out,
		logger: logger,
	}
}

// Run はデッキの読み込みを待ってからステップを順に送信し、
// 最後のコミットの確定と記録の完了を待って終了する。
func (r *Runner) Run(ctx context.Context, script *Script) (*Summary, error) {
	cfg := script.Config()
	obs := newObserver(swipe.NewJSONPresenter(r.out), cfg.RecordingEnabled && r.sink != nil)

	session := swipe.NewSession(cfg, r.loader, r.sink, obs,
		swipe.WithLogger(r.logger),
		swipe.WithRecorder(obs),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	stepErr := r.play(ctx, session, script, obs)
	cancel()
	runErr := <-done

	if runErr != nil {
		return nil, runErr
	}
	if stepErr != nil {
		return nil, stepErr
	}

	summary := obs.summary()
	r.logger.Info("リプレイが完了しました",
		slog.Int("steps", len(script.Steps)),
		slog.Int("swipes_left", summary.Swipes["left"]),
		slog.Int("swipes_right", summary.Swipes["right"]),
	)
	return summary, nil
}

func (r *Runner) play(ctx context.Context, session *swipe.Session, script *Script, obs *observer) error {
	drain := script.drainTimeout()

	if err := obs.waitFor(ctx, drain, obs.loadedLocked); err != nil {
		return fmt.Errorf("デッキの読み込みを待機中にエラーが発生しました: %w", err)
	}

	for i, step := range script.Steps {
		switch {
		case step.Wait > 0:
			select {
			case <-time.After(step.Wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		case step.Reload:
			// 保留中の待機タイマーがない状態で読み込み直す
			if err := r.settle(ctx, session, obs, drain); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
			obs.resetLoaded()
			if err := session.Send(ctx, swipe.Reload{}); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
			if err := obs.waitFor(ctx, drain, obs.loadedLocked); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
			continue
		}

		ev, ok := step.event()
		if !ok {
			continue
		}
		if err := session.Send(ctx, ev); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if rec, ok := ev.(swipe.SetRecording); ok {
			obs.setRecording(rec.Enabled && r.sink != nil)
		}
	}

	return r.settle(ctx, session, obs, drain)
}

// settle は送信済みのイベントがすべて適用され、コミットの確定と記録が完了するまで待つ。
func (r *Runner) settle(ctx context.Context, session *swipe.Session, obs *observer, drain time.Duration) error {
	// トークン0の待機完了イベントは何もしない。受信された時点で先行イベントの適用は終わっている
	if err := session.Send(ctx, swipe.SettleElapsed{}); err != nil {
		return err
	}
	return obs.waitFor(ctx, drain, obs.idleLocked)
}

// observer はPresenterとRecorderを兼ね、セッションが落ち着いたかどうかを追跡する。
type observer struct {
	next    swipe.Presenter
	changed chan struct{}

	mu        sync.Mutex
	loaded    bool
	settling  bool
	recording bool
	expected  int
	finished  int
	swipes    map[string]int
	outcomes  map[string]int
}

func newObserver(next swipe.Presenter, recording bool) *observer {
	return &observer{
		next:      next,
		changed:   make(chan struct{}, 1),
		recording: recording,
		swipes:    make(map[string]int),
		outcomes:  make(map[string]int),
	}
}

// Present はフレームを書き出し、読み込みとコミットの進行を記録する。
func (o *observer) Present(ctx context.Context, eff swipe.Effect) error {
	if err := o.next.Present(ctx, eff); err != nil {
		return err
	}

	o.mu.Lock()
	switch eff.(type) {
	case swipe.MarkSwiped:
		o.settling = true
	case swipe.RenderItem, swipe.RenderExhausted, swipe.RenderError:
		o.loaded = true
		o.settling = false
	}
	o.mu.Unlock()
	o.notify()
	return nil
}

// RecordSwipe はコミットを記録する。記録が有効な場合はActionSinkの完了待ちに加える。
func (o *observer) RecordSwipe(direction string) {
	o.mu.Lock()
	o.swipes[direction]++
	if o.recording {
		o.expected++
	}
	o.mu.Unlock()
	o.notify()
}

// RecordSinkOutcome はActionSinkの完了を記録する。
func (o *observer) RecordSinkOutcome(outcome string) {
	o.mu.Lock()
	o.outcomes[outcome]++
	o.finished++
	o.mu.Unlock()
	o.notify()
}

func (o *observer) notify() {
	select {
	case o.changed <- struct{}{}:
	default:
	}
}

func (o *observer) setRecording(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recording = enabled
}

func (o *observer) resetLoaded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded = false
}

func (o *observer) loadedLocked() bool {
	return o.loaded
}

func (o *observer) idleLocked() bool {
	return o.loaded && !o.settling && o.finished >= o.expected
}

// waitFor はcondが満たされるまで待機する。condはロックを保持した状態で呼ばれる。
func (o *observer) waitFor(ctx context.Context, timeout time.Duration, cond func() bool) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		o.mu.Lock()
		ok := cond()
		o.mu.Unlock()
		if ok {
			return nil
		}

		select {
		case <-o.changed:
		case <-deadline.C:
			return ErrDrainTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *observer) summary() *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := &Summary{
		Swipes:   make(map[string]int, len(o.swipes)),
		Outcomes: make(map[string]int, len(o.outcomes)),
	}
	for k, v := range o.swipes {
		s.Swipes[k] = v
	}
	for k, v := range o.outcomes {
		s.Outcomes[k] = v
	}
	return s
}
