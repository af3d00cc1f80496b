package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/newsswiper/internal/model"
)

// maxResponseSize はレスポンスボディの読み取り上限。
const maxResponseSize = 10 << 20

// listResponse は GET /api/news のレスポンスボディ。
type listResponse struct {
	Items       []model.NewsItemPayload `json:"items"`
	Total       int                     `json:"total"`
	Pages       int                     `json:"pages"`
	CurrentPage int                     `json:"current_page"`
}

// Client はHTTP経由で記事を取得するクライアント。swipe.Loaderを実装する。
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
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/news",
	}
}

// LoadItems は先頭ページの記事を一括取得する。
func (c *Client) LoadItems(ctx context.Context, perPage int) ([]model.NewsItem, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("per_page", strconv.Itoa(perPage))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("記事一覧APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("記事一覧APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("記事一覧APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var lr listResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	items := make([]model.NewsItem, len(lr.Items))
	for i, p := range lr.Items {
		items[i] = p.NewsItem()
	}
	return items, nil
}
