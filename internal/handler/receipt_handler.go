package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/newsswiper/internal/model"
	"github.com/hitoshi/newsswiper/internal/receipt"
)

// maxReceiptRequestSize はレシート印刷リクエストボディの上限。
const maxReceiptRequestSize = 64 << 10

// ReceiptServiceInterface はレシートハンドラーが必要とするサービスインターフェース。
type ReceiptServiceInterface interface {
	Print(ctx context.Context, item *model.NewsItem, action model.SwipeAction) (*receipt.Result, error)
}

// ReceiptHandler はレシート印刷のHTTPハンドラー。
type ReceiptHandler struct {
	service ReceiptServiceInterface
}

// NewReceiptHandler はReceiptHandlerを生成する。
func NewReceiptHandler(service ReceiptServiceInterface) *ReceiptHandler {
	return &ReceiptHandler{service: service}
}

// printReceiptRequest はレシート印刷リクエストのボディ。
type printReceiptRequest struct {
	NewsItem *model.NewsItemPayload `json:"newsItem"`
	Action   model.SwipeAction      `json:"action"`
}

// printReceiptResult はプリンターへの出力結果。
// プリンター未接続の場合は生成したマークアップを含む。
type printReceiptResult struct {
	TrackingID   string `json:"tracking_id"`
	Markdown     string `json:"markdown,omitempty"`
	BytesWritten int    `json:"bytes_written,omitempty"`
}

// printReceiptResponse はレシート印刷のレスポンス。
type printReceiptResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Result  printReceiptResult `json:"result"`
	Warning string             `json:"warning,omitempty"`
}

// PrintReceipt はスワイプされた記事のレシートを印刷する。
// POST /api/print-receipt
func (h *ReceiptHandler) PrintReceipt(w http.ResponseWriter, r *http.Request) {
	var req printReceiptRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReceiptRequestSize)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if req.NewsItem == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewNewsItemRequiredError())
		return
	}

	item := req.NewsItem.NewsItem()
	result, err := h.service.Print(r.Context(), &item, req.Action)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, printReceiptResponse{
		Success: result.Success,
		Message: result.Message,
		Result: printReceiptResult{
			TrackingID:   result.TrackingID,
			Markdown:     result.Markup,
			BytesWritten: result.BytesWritten,
		},
		Warning: result.Warning,
	})
}
