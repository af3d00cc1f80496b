// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, news, receipt, system
	Action   string // ユーザー向け対処方法
	Details  string // 内部エラーの詳細（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNewsItemNotFound = "NEWS_ITEM_NOT_FOUND"
	ErrCodeInvalidNewsID    = "INVALID_NEWS_ID"
	ErrCodeInvalidPage      = "INVALID_PAGE"
	ErrCodeNewsItemRequired = "NEWS_ITEM_REQUIRED"
	ErrCodeInvalidAction    = "INVALID_ACTION"
	ErrCodeReceiptFailed    = "RECEIPT_FAILED"
	ErrCodeNoContent        = "NO_CONTENT"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
)

// NewNewsItemNotFoundError は記事未検出エラーを生成する。
func NewNewsItemNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeNewsItemNotFound,
		Message:  "News item not found",
		Category: "news",
		Action:   "Check the news item id.",
		Details:  fmt.Sprintf("id=%d", id),
	}
}

// NewInvalidNewsIDError は記事IDの形式が不正な場合のエラーを生成する。
func NewInvalidNewsIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidNewsID,
		Message:  fmt.Sprintf("Invalid news item id: %s", raw),
		Category: "validation",
		Action:   "Use a positive integer id.",
	}
}

// NewInvalidPageError はページ指定が不正な場合のエラーを生成する。
func NewInvalidPageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("Invalid pagination: %s", reason),
		Category: "validation",
		Action:   "Use page >= 1 and per_page between 1 and the configured maximum.",
	}
}

// NewNewsItemRequiredError はレシート印刷リクエストに記事が含まれない場合のエラーを生成する。
func NewNewsItemRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeNewsItemRequired,
		Message:  "News item is required",
		Category: "validation",
		Action:   "Send the swiped news item as newsItem.",
	}
}

// NewInvalidActionError は未定義のスワイプアクションが指定された場合のエラーを生成する。
func NewInvalidActionError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAction,
		Message:  fmt.Sprintf("Invalid action: %s", action),
		Category: "validation",
		Action:   "Use save or skip.",
	}
}

// NewReceiptFailedError はレシートの生成自体に失敗した場合のエラーを生成する。
// プリンター未接続はこのエラーにならず、警告付きの成功として扱う。
func NewReceiptFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeReceiptFailed,
		Message:  "Failed to print receipt",
		Category: "receipt",
		Action:   "Retry later.",
		Details:  reason,
	}
}

// NewNoContentError はデッキに読み込む記事が取得できなかった場合のエラーを生成する。
func NewNoContentError() *APIError {
	return &APIError{
		Code:     ErrCodeNoContent,
		Message:  "No content available",
		Category: "news",
		Action:   "Reload to try again.",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid request body",
		Category: "validation",
		Action:   "Send a JSON body.",
		Details:  reason,
	}
}
