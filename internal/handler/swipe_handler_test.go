package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/newsswiper/internal/middleware"
	"github.com/hitoshi/newsswiper/internal/model"
	"github.com/hitoshi/newsswiper/internal/swipe"
)

const frameTimeout = 2 * time.Second

// stubLoader は固定の記事を返すswipe.Loader。
type stubLoader struct {
	items []model.NewsItem
}

func (l *stubLoader) LoadItems(ctx context.Context, perPage int) ([]model.NewsItem, error) {
	return l.items, nil
}

// recordingSink は受け取った記録を保持するswipe.ActionSink。
type recordingSink struct {
	mu      sync.Mutex
	records []model.SwipeAction
}

func (s *recordingSink) Record(ctx context.Context, item model.NewsItem, action model.SwipeAction) (swipe.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, action)
	return swipe.Outcome{Success: true, Message: "Receipt printed successfully"}, nil
}

func (s *recordingSink) actions() []model.SwipeAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SwipeAction(nil), s.records...)
}

// mockSessionMetrics はSessionMetricsのモック実装。
type mockSessionMetrics struct {
	mu       sync.Mutex
	started  int
	ended    int
	swipes   []string
	outcomes []string
}

func (m *mockSessionMetrics) RecordSwipe(direction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swipes = append(m.swipes, direction)
}

func (m *mockSessionMetrics) RecordSinkOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockSessionMetrics) SessionStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockSessionMetrics) SessionEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended++
}

func (m *mockSessionMetrics) counts() (started, ended int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.ended
}

func testItems() []model.NewsItem {
	return []model.NewsItem{
		{ID: 1, Title: "Breakthrough in Quantum Computing"},
		{ID: 2, Title: "Global Markets Rally"},
	}
}

func setupSwipeServer(t *testing.T, sink swipe.ActionSink, m SessionMetrics) (*httptest.Server, string) {
	t.Helper()
	h := NewSwipeHandler(&stubLoader{items: testItems()}, sink, swipe.Config{
		Threshold:        100,
		SettleDelay:      10 * time.Millisecond,
		PageSize:         20,
		RecordingEnabled: true,
	}, m, discardLogger(), "")

	router := NewRouter(&RouterDeps{
		Logger:         discardLogger(),
		NewsService:    &mockNewsService{},
		ReceiptService: &mockReceiptService{},
		SwipeHandler:   h,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/swipe"
}

func dialSwipe(t *testing.T, url string) (*websocket.Conn, *http.Response) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, resp
}

// readUntil は指定した種別のフレームを受信するまで読み進める。
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) swipe.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(frameTimeout))
	for {
		var f swipe.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %q frame: %v", frameType, err)
		}
		if f.Type == frameType {
			return f
		}
	}
}

func TestSwipeHandler_RendersFirstCardOnConnect(t *testing.T) {
	_, url := setupSwipeServer(t, &recordingSink{}, nil)
	conn, resp := dialSwipe(t, url)

	if resp.Header.Get(middleware.SessionIDHeader) == "" {
		t.Error("upgrade response should carry the session id")
	}

	f := readUntil(t, conn, swipe.FrameRender)
	if f.Item == nil || f.Item.ID != 1 {
		t.Fatalf("first render = %+v", f)
	}
	if f.Progress == nil || f.Progress.Index != 0 || f.Progress.Total != 2 {
		t.Errorf("progress = %+v", f.Progress)
	}
}

func TestSwipeHandler_DragCommitAdvancesDeck(t *testing.T) {
	sink := &recordingSink{}
	_, url := setupSwipeServer(t, sink, nil)
	conn, _ := dialSwipe(t, url)
	readUntil(t, conn, swipe.FrameRender)

	for _, msg := range []string{
		`{"type":"down","x":0,"y":0}`,
		`{"type":"move","x":150,"y":10}`,
		`{"type":"up"}`,
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	tf := readUntil(t, conn, swipe.FrameTransform)
	if tf.Transform == nil || tf.Transform.TranslateX != 150 {
		t.Errorf("transform = %+v", tf.Transform)
	}
	swiped := readUntil(t, conn, swipe.FrameSwiped)
	if swiped.Direction != "right" {
		t.Errorf("direction = %q, want right", swiped.Direction)
	}
	next := readUntil(t, conn, swipe.FrameRender)
	if next.Item == nil || next.Item.ID != 2 {
		t.Errorf("next render = %+v", next)
	}

	deadline := time.Now().Add(frameTimeout)
	for len(sink.actions()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.actions(); len(got) != 1 || got[0] != model.ActionSave {
		t.Errorf("sink records = %v, want [save]", got)
	}
}

func TestSwipeHandler_ButtonSwipeToExhaustion(t *testing.T) {
	_, url := setupSwipeServer(t, &recordingSink{}, nil)
	conn, _ := dialSwipe(t, url)
	readUntil(t, conn, swipe.FrameRender)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"button","direction":"left"}`))
	readUntil(t, conn, swipe.FrameRender)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"button","direction":"left"}`))
	f := readUntil(t, conn, swipe.FrameExhausted)
	if f.Message != "No more news!" {
		t.Errorf("message = %q", f.Message)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reload"}`))
	f = readUntil(t, conn, swipe.FrameRender)
	if f.Item == nil || f.Item.ID != 1 {
		t.Errorf("render after reload = %+v", f)
	}
}

func TestSwipeHandler_InvalidMessage(t *testing.T) {
	_, url := setupSwipeServer(t, &recordingSink{}, nil)
	conn, _ := dialSwipe(t, url)
	readUntil(t, conn, swipe.FrameRender)

	tests := []struct {
		msg  string
		want string
	}{
		{`not json`, "malformed message"},
		{`{"type":"jump"}`, "unknown message type"},
		{`{"type":"button","direction":"up"}`, "unknown direction"},
	}
	for _, tt := range tests {
		conn.WriteMessage(websocket.TextMessage, []byte(tt.msg))
		f := readUntil(t, conn, frameInvalidMessage)
		if !strings.Contains(f.Message, tt.want) {
			t.Errorf("message for %q = %q, want to contain %q", tt.msg, f.Message, tt.want)
		}
	}
}

func TestSwipeHandler_RecordsSessionMetrics(t *testing.T) {
	m := &mockSessionMetrics{}
	_, url := setupSwipeServer(t, &recordingSink{}, m)
	conn, _ := dialSwipe(t, url)
	readUntil(t, conn, swipe.FrameRender)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"button","direction":"right"}`))
	readUntil(t, conn, swipe.FrameSwiped)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(frameTimeout)
	for {
		started, ended := m.counts()
		if started == 1 && ended == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("started=%d ended=%d, want 1/1", started, ended)
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.swipes) != 1 || m.swipes[0] != "right" {
		t.Errorf("swipes = %v, want [right]", m.swipes)
	}
}

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		raw  string
		want swipe.Event
	}{
		{`{"type":"down","x":1,"y":2}`, swipe.PointerDown{X: 1, Y: 2}},
		{`{"type":"move","x":-30,"y":4}`, swipe.PointerMove{X: -30, Y: 4}},
		{`{"type":"up"}`, swipe.PointerUp{}},
		{`{"type":"button","direction":"right"}`, swipe.ButtonSwipe{Direction: swipe.DirectionRight}},
		{`{"type":"reload"}`, swipe.Reload{}},
		{`{"type":"recording","enabled":true}`, swipe.SetRecording{Enabled: true}},
	}
	for _, tt := range tests {
		got, err := decodeClientMessage([]byte(tt.raw))
		if err != nil {
			t.Errorf("decodeClientMessage(%s) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("decodeClientMessage(%s) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed string
		want    bool
	}{
		{"no origin", "", "", true},
		{"same origin", "http://example.com", "", true},
		{"allowed origin", "http://localhost:5001", "http://localhost:5001", true},
		{"foreign origin", "http://evil.example", "http://localhost:5001", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/ws/swipe", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(req, tt.allowed); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}
