package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/newsswiper/internal/model"
	"github.com/hitoshi/newsswiper/internal/swipe"
)

// maxResponseSize はレスポンスボディの読み取り上限。
// プリンター未接続時はマークアップ全体が返るため余裕を持たせる。
const maxResponseSize = 1 << 20

// printRequest は POST /api/print-receipt のリクエストボディ。
type printRequest struct {
	NewsItem *model.NewsItemPayload `json:"newsItem"`
	Action   model.SwipeAction      `json:"action"`
}

// printResponse は POST /api/print-receipt のレスポンスボディ。
// 成功時はsuccess/message/warning、失敗時はerror/detailsが設定される。
type printResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Warning string `json:"warning"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Client はHTTP経由でレシート印刷を依頼するActionSink。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientを生成する。baseURLはサーバーのオリジン（例: http://localhost:5001）。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/print-receipt",
	}
}

// Record はレシート印刷を依頼する。
// サーバーがエラーステータスを返した場合は失敗のOutcomeを返し、通信自体の失敗のみerrorとする。
func (c *Client) Record(ctx context.Context, item model.NewsItem, action model.SwipeAction) (swipe.Outcome, error) {
	payload := item.Payload()
	body, err := json.Marshal(printRequest{NewsItem: &payload, Action: action})
	if err != nil {
		return swipe.Outcome{}, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return swipe.Outcome{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("レシート印刷APIの呼び出しに失敗しました",
			slog.Int64("news_id", item.ID),
			slog.String("error", err.Error()),
		)
		return swipe.Outcome{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return swipe.Outcome{}, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var pr printResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return swipe.Outcome{}, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("レシート印刷APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("error", pr.Error),
			slog.String("details", pr.Details),
		)
		return swipe.Outcome{Success: false, Message: pr.Error}, nil
	}

	return swipe.Outcome{
		Success: pr.Success,
		Message: pr.Message,
		Warning: pr.Warning,
	}, nil
}
