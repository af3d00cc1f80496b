package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/newsswiper/internal/config"
	"github.com/hitoshi/newsswiper/internal/database"
	"github.com/hitoshi/newsswiper/internal/handler"
	"github.com/hitoshi/newsswiper/internal/logger"
	"github.com/hitoshi/newsswiper/internal/metrics"
	"github.com/hitoshi/newsswiper/internal/middleware"
	"github.com/hitoshi/newsswiper/internal/news"
	"github.com/hitoshi/newsswiper/internal/receipt"
	"github.com/hitoshi/newsswiper/internal/replay"
	"github.com/hitoshi/newsswiper/internal/repository"
	"github.com/hitoshi/newsswiper/internal/security"
	"github.com/hitoshi/newsswiper/internal/swipe"
	"github.com/hitoshi/newsswiper/internal/worker/cleanup"
	fetchpkg "github.com/hitoshi/newsswiper/internal/worker/fetch"
)

// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// DBを使わないコマンドはフル初期化をスキップする
	if !cmd.NeedsDatabase() {
		switch cmd {
		case CommandHealthcheck:
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "5001"
			}
			return runHealthcheck(port, config.LoadClient().HTTPTimeout)
		case CommandReplay:
			if len(args) < 2 {
				return errors.New(Usage())
			}
			// フレームをwに書き出すため、ログは標準エラー出力に分ける
			logger.SetupDefault(os.Stderr, logger.ParseLevel(os.Getenv("LOG_LEVEL")))
			return runReplay(w, config.LoadClient(), args[1])
		}
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// newRegistry はGo/プロセスメトリクスとアプリケーションメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	log := slog.Default()

	// 2. リポジトリとメトリクスの初期化
	newsRepo := repository.NewPostgresNewsItemRepo(db)
	reg, collector := newRegistry()

	// 3. ドメインサービスの初期化
	newsService := news.NewService(newsRepo, log, cfg.NewsMaxPageSize)

	formatter := receipt.NewFormatter(cfg.ReceiptSeed, time.Now)
	printer := receipt.NewPrinter(cfg.PrinterDevice, cfg.PrinterAddr, cfg.PrinterTimeout)
	receiptService := receipt.NewService(formatter, printer, log, collector)

	// 4. スワイプセッション（記事はDBから直接、記録はレシート印刷へ）
	swipeHandler := handler.NewSwipeHandler(
		newsService,
		receipt.NewSink(receiptService),
		swipe.Config{
			Threshold:        cfg.SwipeThreshold,
			SettleDelay:      cfg.SwipeSettleDelay,
			PageSize:         cfg.NewsPageSize,
			RecordingEnabled: cfg.ReceiptPrintingEnabled,
		},
		collector,
		log,
		cfg.CORSAllowedOrigin,
	)

	// 5. ルーターの構築
	receiptLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitReceipt), log)
	defer receiptLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		ReceiptLimiter:    receiptLimiter,
		HealthChecker:     db,
		Gatherer:          reg,
		NewsService:       newsService,
		ReceiptService:    receiptService,
		SwipeHandler:      swipeHandler,
	})

	// 6. HTTPサーバーの起動
	// WebSocket接続はアップグレード時にサーバーのタイムアウトが解除される
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 設定されたフィードの定期取り込みと、保持期間を過ぎた記事の削除を行う。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	log := slog.Default()

	// 2. リポジトリとメトリクスの初期化
	newsRepo := repository.NewPostgresNewsItemRepo(db)
	reg, collector := newRegistry()

	// 3. フェッチャーとスケジューラの初期化
	fetcher := fetchpkg.NewFetcher(
		newsRepo,
		security.NewURLGuard(),
		security.NewCardSanitizer(0, 0),
		collector,
		log,
		cfg.ImportTimeout,
		cfg.ImportMaxSize,
	)
	scheduler := fetchpkg.NewScheduler(feedSources(cfg.Feeds), fetcher, log, cfg.ImportConcurrency)

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(newsRepo, collector, log)
	cleanupJob.RetentionDays = cfg.NewsRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 5. メトリクスエンドポイント（任意）
	if cfg.WorkerMetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server listen error", slog.String("error", err.Error()))
			}
		}()
		defer metricsServer.Close()
	}

	slog.Info("worker starting",
		slog.Int("feeds", len(cfg.Feeds)),
		slog.Duration("import_interval", cfg.ImportInterval),
		slog.Int("max_concurrent", cfg.ImportConcurrency),
	)

	// クリーンアップジョブをバックグラウンドで実行
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// フェッチスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ImportInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// feedSources は設定のフィード定義をフェッチ対象に変換する。
func feedSources(feeds []config.FeedConfig) []fetchpkg.FeedSource {
	sources := make([]fetchpkg.FeedSource, len(feeds))
	for i, f := range feeds {
		sources[i] = fetchpkg.FeedSource{URL: f.URL, Source: f.Source, Category: f.Category}
	}
	return sources
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed は記事テーブルが空の場合にサンプル記事を投入する。
func runSeed(cfg *config.Config) error {
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := news.NewService(repository.NewPostgresNewsItemRepo(db), slog.Default(), cfg.NewsMaxPageSize)
	if _, err := svc.Seed(context.Background()); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}

// runReplay はスクリプトのジェスチャーをサーバーに対して再生し、フレームをwに書き出す。
func runReplay(w io.Writer, cfg *config.ClientConfig, path string) error {
	script, err := replay.LoadScript(path)
	if err != nil {
		return err
	}

	log := slog.Default()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	runner := replay.NewRunner(
		news.NewClient(httpClient, cfg.BaseURL, log),
		receipt.NewClient(httpClient, cfg.BaseURL, log),
		w,
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := runner.Run(ctx, script); err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string, timeout time.Duration) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: timeout}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
