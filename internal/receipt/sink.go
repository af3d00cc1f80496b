package receipt

import (
	"context"

	"github.com/hitoshi/newsswiper/internal/model"
	"github.com/hitoshi/newsswiper/internal/swipe"
)

// Sink はServiceをスワイプセッションのActionSinkとして使うためのアダプター。
type Sink struct {
	service *Service
}

// NewSink はSinkを生成する。
func NewSink(service *Service) *Sink {
	return &Sink{service: service}
}

// Record はスワイプされた記事のレシートを印刷する。
func (s *Sink) Record(ctx context.Context, item model.NewsItem, action model.SwipeAction) (swipe.Outcome, error) {
	result, err := s.service.Print(ctx, &item, action)
	if err != nil {
		return swipe.Outcome{}, err
	}
	return swipe.Outcome{
		Success: result.Success,
		Message: result.Message,
		Warning: result.Warning,
	}, nil
}
