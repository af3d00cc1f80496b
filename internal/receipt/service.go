package receipt

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/newsswiper/internal/model"
)

const (
	messagePrinted   = "Receipt printed successfully"
	messageGenerated = "Receipt format generated (printer not available)"
	warningNoPrinter = "Printer not available"
)

// レシート出力結果のメトリクスラベル。
const (
	OutcomePrinted  = "printed"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Result はレシート出力の結果。
// プリンター未接続の場合もSuccessはtrueで、Warningと生成したマークアップを含む。
type Result struct {
	Success      bool
	Message      string
	Warning      string
	TrackingID   string
	Markup       string // プリンター未接続時のみ設定
	BytesWritten int
}

// Recorder はレシート出力結果のメトリクスを記録する。
type Recorder interface {
	RecordReceipt(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordReceipt(string) {}

// Service はレシートの生成と印刷を行う。
type Service struct {
	formatter *Formatter
	printer   Printer
	logger    *slog.Logger
	recorder  Recorder
}

// NewService はServiceを生成する。recorderがnilの場合は記録しない。
func NewService(formatter *Formatter, printer Printer, logger *slog.Logger, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		formatter: formatter,
		printer:   printer,
		logger:    logger,
		recorder:  recorder,
	}
}

// Print は記事とアクションからレシートを生成して印刷する。
// 記事がnilの場合やアクションが不正な場合は*model.APIErrorを返す。空のアクションはskipとして扱う。
// プリンターに送信できない場合はエラーにせず、警告付きの成功を返す。
func (s *Service) Print(ctx context.Context, item *model.NewsItem, action model.SwipeAction) (*Result, error) {
	if item == nil {
		return nil, model.NewNewsItemRequiredError()
	}
	if action == "" {
		action = model.ActionSkip
	}
	if !action.Valid() {
		return nil, model.NewInvalidActionError(string(action))
	}

	doc := s.formatter.Format(*item, action)
	data := Encode(doc.Markup)

	if err := s.printer.Print(ctx, data); err != nil {
		if !errors.Is(err, ErrPrinterUnavailable) {
			s.recorder.RecordReceipt(OutcomeFailed)
			s.logger.Error("レシートの印刷に失敗しました",
				slog.Int64("news_id", item.ID),
				slog.String("tracking_id", doc.TrackingID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewReceiptFailedError(err.Error())
		}

		s.recorder.RecordReceipt(OutcomeDegraded)
		s.logger.Warn("プリンターが利用できないため、レシートの生成のみ行いました",
			slog.Int64("news_id", item.ID),
			slog.String("tracking_id", doc.TrackingID),
			slog.String("error", err.Error()),
		)
		return &Result{
			Success:    true,
			Message:    messageGenerated,
			Warning:    warningNoPrinter,
			TrackingID: doc.TrackingID,
			Markup:     doc.Markup,
		}, nil
	}

	s.recorder.RecordReceipt(OutcomePrinted)
	s.logger.Info("レシートを印刷しました",
		slog.Int64("news_id", item.ID),
		slog.String("action", string(action)),
		slog.String("tracking_id", doc.TrackingID),
		slog.Int("bytes", len(data)),
	)
	return &Result{
		Success:      true,
		Message:      messagePrinted,
		TrackingID:   doc.TrackingID,
		BytesWritten: len(data),
	}, nil
}
