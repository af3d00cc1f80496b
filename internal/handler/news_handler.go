package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsswiper/internal/model"
)

const (
	// defaultNewsPage は page 未指定時のページ番号。
	defaultNewsPage = 1
	// defaultNewsPerPage は per_page 未指定時の取得件数。
	defaultNewsPerPage = 10
)

// NewsServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	// List は公開日時の新しい順に記事一覧を返す。categoryが空の場合は絞り込まない。
	List(ctx context.Context, page, perPage int, category string) (*model.NewsPage, error)
	// Get は記事を1件返す。存在しない場合は*model.APIErrorを返す。
	Get(ctx context.Context, id int64) (*model.NewsItem, error)
}

// NewsHandler は記事取得のHTTPハンドラー。
type NewsHandler struct {
	service NewsServiceInterface
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(service NewsServiceInterface) *NewsHandler {
	return &NewsHandler{service: service}
}

// newsListResponse は記事一覧のレスポンス。
type newsListResponse struct {
	Items       []model.NewsItemPayload `json:"items"`
	Total       int                     `json:"total"`
	Pages       int                     `json:"pages"`
	CurrentPage int                     `json:"current_page"`
}

// ListNews は記事一覧を取得する。
// GET /api/news?page=1&per_page=10&category=Technology
func (h *NewsHandler) ListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, apiErr := parsePositiveInt(q.Get("page"), "page", defaultNewsPage)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	perPage, apiErr := parsePositiveInt(q.Get("per_page"), "per_page", defaultNewsPerPage)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.List(r.Context(), page, perPage, q.Get("category"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	items := make([]model.NewsItemPayload, len(result.Items))
	for i, it := range result.Items {
		items[i] = it.Payload()
	}

	writeJSON(w, http.StatusOK, newsListResponse{
		Items:       items,
		Total:       result.Total,
		Pages:       result.Pages,
		CurrentPage: result.CurrentPage,
	})
}

// GetNews は記事を1件取得する。
// GET /api/news/{id}
func (h *NewsHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidNewsIDError(raw))
		return
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item.Payload())
}

// parsePositiveInt はクエリパラメータを1以上の整数として解析する。空の場合はdefを返す。
func parsePositiveInt(raw, name string, def int) (int, *model.APIError) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidPageError(name + " must be an integer")
	}
	if n < 1 {
		return 0, model.NewInvalidPageError(name + " must be >= 1")
	}
	return n, nil
}
