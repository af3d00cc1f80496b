// Package replay はYAMLで記述したジェスチャー列をスワイプセッションに流し込み、
// 描画フレームを書き出す。サーバーの動作確認や印刷フローの再現に使う。
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/newsswiper/internal/swipe"
)

// defaultDrainTimeout はステップ終了後に保留中の処理を待つ時間のデフォルト値。
const defaultDrainTimeout = 10 * time.Second

// Script はリプレイするジェスチャー列。
//
//	threshold: 100
//	settle_delay: 300ms
//	page_size: 20
//	steps:
//	  - down: [0, 0]
//	  - move: [150, 10]
//	  - up: true
//	  - wait: 400ms
//	  - button: left
type Script struct {
	Threshold   float64       `yaml:"threshold"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	PageSize    int           `yaml:"page_size"`
	Recording   *bool         `yaml:"recording"`
	Drain       time.Duration `yaml:"drain"`
	Steps       []Step        `yaml:"steps"`
}

// Step はスクリプトの1操作。いずれか1つのフィールドだけを指定する。
type Step struct {
	Down      []float64     `yaml:"down"`
	Move      []float64     `yaml:"move"`
	Up        bool          `yaml:"up"`
	Button    string        `yaml:"button"`
	Wait      time.Duration `yaml:"wait"`
	Reload    bool          `yaml:"reload"`
	Recording *bool         `yaml:"recording"`
}

// LoadScript はファイルからスクリプトを読み込む。
func LoadScript(path string) (*Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("スクリプトの読み込みに失敗しました: %w", err)
	}
	return ParseScript(bytes.NewReader(raw))
}

// ParseScript はYAMLのスクリプトを解析し、検証する。未知のキーはエラーとする。
func ParseScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("スクリプトが空です")
		}
		return nil, fmt.Errorf("スクリプトのパースに失敗しました: %w", err)
	}

	if s.Threshold < 0 {
		return nil, fmt.Errorf("thresholdは0以上である必要があります: %v", s.Threshold)
	}
	if s.SettleDelay < 0 || s.Drain < 0 {
		return nil, errors.New("settle_delayとdrainは0以上である必要があります")
	}
	if s.PageSize < 0 {
		return nil, fmt.Errorf("page_sizeは0以上である必要があります: %d", s.PageSize)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return &s, nil
}

// Config はスクリプトの設定をスワイプセッションの設定に変換する。
// recording未指定の場合は記録を有効にする。
func (s *Script) Config() swipe.Config {
	recording := true
	if s.Recording != nil {
		recording = *s.Recording
	}
	return swipe.Config{
		Threshold:        s.Threshold,
		SettleDelay:      s.SettleDelay,
		PageSize:         s.PageSize,
		RecordingEnabled: recording,
	}
}

func (s *Script) drainTimeout() time.Duration {
	if s.Drain > 0 {
		return s.Drain
	}
	return defaultDrainTimeout
}

func (st Step) validate() error {
	n := 0
	if st.Down != nil {
		n++
		if len(st.Down) != 2 {
			return fmt.Errorf("downには[x, y]を指定してください: %v", st.Down)
		}
	}
	if st.Move != nil {
		n++
		if len(st.Move) != 2 {
			return fmt.Errorf("moveには[x, y]を指定してください: %v", st.Move)
		}
	}
	if st.Up {
		n++
	}
	if st.Button != "" {
		n++
		if _, ok := swipe.ParseDirection(st.Button); !ok {
			return fmt.Errorf("buttonにはleftまたはrightを指定してください: %q", st.Button)
		}
	}
	if st.Wait != 0 {
		n++
		if st.Wait < 0 {
			return fmt.Errorf("waitは0以上である必要があります: %v", st.Wait)
		}
	}
	if st.Reload {
		n++
	}
	if st.Recording != nil {
		n++
	}

	switch n {
	case 0:
		return errors.New("操作が指定されていません")
	case 1:
		return nil
	default:
		return errors.New("1つのステップには1つの操作だけを指定してください")
	}
}

// event はステップに対応する入力イベントを返す。waitとreloadは呼び出し側で扱う。
func (st Step) event() (swipe.Event, bool) {
	switch {
	case st.Down != nil:
		return swipe.PointerDown{X: st.Down[0], Y: st.Down[1]}, true
	case st.Move != nil:
		return swipe.PointerMove{X: st.Move[0], Y: st.Move[1]}, true
	case st.Up:
		return swipe.PointerUp{}, true
	case st.Button != "":
		dir, _ := swipe.ParseDirection(st.Button)
		return swipe.ButtonSwipe{Direction: dir}, true
	case st.Recording != nil:
		return swipe.SetRecording{Enabled: *st.Recording}, true
	default:
		return nil, false
	}
}
