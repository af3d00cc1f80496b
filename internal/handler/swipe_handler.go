package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/newsswiper/internal/middleware"
	"github.com/hitoshi/newsswiper/internal/swipe"
)

const (
	// maxClientMessageSize はクライアントから受け付けるメッセージサイズの上限。
	maxClientMessageSize = 4096
	// socketWriteTimeout はフレーム書き込みのタイムアウト。
	socketWriteTimeout = 5 * time.Second

	// frameInvalidMessage は解析できない入力に対する応答フレームの種別。
	frameInvalidMessage = "invalid_message"
)

// SessionMetrics はスワイプセッションのメトリクス記録先。
type SessionMetrics interface {
	swipe.Recorder
	SessionStarted()
	SessionEnded()
}

// SwipeHandler はWebSocket接続ごとにスワイプセッションを実行するハンドラー。
type SwipeHandler struct {
	loader   swipe.Loader
	sink     swipe.ActionSink
	config   swipe.Config
	metrics  SessionMetrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewSwipeHandler はSwipeHandlerを生成する。
// allowedOriginが空の場合は同一オリジンからの接続のみ許可する。
func NewSwipeHandler(loader swipe.Loader, sink swipe.ActionSink, config swipe.Config, metrics SessionMetrics, logger *slog.Logger, allowedOrigin string) *SwipeHandler {
	return &SwipeHandler{
		loader:  loader,
		sink:    sink,
		config:  config,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return checkOrigin(r, allowedOrigin)
			},
		},
	}
}

// checkOrigin はOriginヘッダーが許可されたオリジンか同一オリジンかを判定する。
func checkOrigin(r *http.Request, allowedOrigin string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if allowedOrigin != "" && origin == allowedOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// ServeHTTP はWebSocketにアップグレードし、切断までセッションを実行する。
// GET /ws/swipe
func (h *SwipeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	presenter := &socketPresenter{}
	opts := []swipe.Option{swipe.WithLogger(h.logger)}
	if h.metrics != nil {
		opts = append(opts, swipe.WithRecorder(h.metrics))
	}
	session := swipe.NewSession(h.config, h.loader, h.sink, presenter, opts...)

	header := http.Header{}
	header.Set(middleware.SessionIDHeader, session.ID())
	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Warn("WebSocketへのアップグレードに失敗しました",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxClientMessageSize)
	presenter.conn = conn

	if h.metrics != nil {
		h.metrics.SessionStarted()
		defer h.metrics.SessionEnded()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := session.Run(ctx)
		// 書き込み失敗でRunが終了した場合に読み込みループを解除する
		conn.Close()
		done <- err
	}()

	h.readLoop(ctx, conn, session, presenter)
	cancel()

	if err := <-done; err != nil {
		h.logger.Warn("スワイプセッションがエラーで終了しました",
			slog.String("session_id", session.ID()),
			slog.String("error", err.Error()),
		)
	}
}

// readLoop はクライアントのメッセージをイベントに変換してセッションに送る。
func (h *SwipeHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *swipe.Session, presenter *socketPresenter) {
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Info("WebSocket接続が切断されました",
					slog.String("session_id", session.ID()),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if messageType != websocket.TextMessage {
			presenter.send(swipe.Frame{Type: frameInvalidMessage, Message: "only text messages are accepted"})
			continue
		}

		ev, err := decodeClientMessage(message)
		if err != nil {
			presenter.send(swipe.Frame{Type: frameInvalidMessage, Message: err.Error()})
			continue
		}

		if err := session.Send(ctx, ev); err != nil {
			return
		}
	}
}

// clientMessage はクライアントから送られる入力メッセージ。
type clientMessage struct {
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction string  `json:"direction"`
	Enabled   bool    `json:"enabled"`
}

// decodeClientMessage は入力メッセージをスワイプイベントに変換する。
func decodeClientMessage(raw []byte) (swipe.Event, error) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}

	switch msg.Type {
	case "down":
		return swipe.PointerDown{X: msg.X, Y: msg.Y}, nil
	case "move":
		return swipe.PointerMove{X: msg.X, Y: msg.Y}, nil
	case "up":
		return swipe.PointerUp{}, nil
	case "button":
		dir, ok := swipe.ParseDirection(msg.Direction)
		if !ok {
			return nil, fmt.Errorf("unknown direction: %q", msg.Direction)
		}
		return swipe.ButtonSwipe{Direction: dir}, nil
	case "reload":
		return swipe.Reload{}, nil
	case "recording":
		return swipe.SetRecording{Enabled: msg.Enabled}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", msg.Type)
	}
}

// socketPresenter は表示系EffectをWebSocketのJSONフレームとして送信する。
// セッションのgoroutineと読み込みループの両方から書き込むため、書き込みを直列化する。
type socketPresenter struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Present はEffectをフレームに変換して送信する。
func (p *socketPresenter) Present(_ context.Context, eff swipe.Effect) error {
	f, ok := swipe.FrameOf(eff)
	if !ok {
		return nil
	}
	return p.send(f)
}

func (p *socketPresenter) send(f swipe.Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}
	return p.conn.WriteJSON(f)
}
