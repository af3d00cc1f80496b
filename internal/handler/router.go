package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newsswiper/internal/metrics"
	"github.com/hitoshi/newsswiper/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	ReceiptLimiter    *middleware.RateLimiter

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	// 記事
	NewsService NewsServiceInterface

	// レシート
	ReceiptService ReceiptServiceInterface

	// スワイプセッション（nilの場合は/ws/swipeを公開しない）
	SwipeHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → CORS → SecurityHeaders
//
// レシート印刷のみクライアント単位のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	newsHandler := NewNewsHandler(deps.NewsService)
	receiptHandler := NewReceiptHandler(deps.ReceiptService)

	r.Route("/api", func(r chi.Router) {
		r.Get("/news", newsHandler.ListNews)
		r.Get("/news/{id}", newsHandler.GetNews)

		if deps.ReceiptLimiter != nil {
			r.With(deps.ReceiptLimiter.Middleware()).Post("/print-receipt", receiptHandler.PrintReceipt)
		} else {
			r.Post("/print-receipt", receiptHandler.PrintReceipt)
		}
	})

	if deps.SwipeHandler != nil {
		r.Method(http.MethodGet, "/ws/swipe", deps.SwipeHandler)
	}

	return r
}
