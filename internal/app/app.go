package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/heredeirxs/internal/auth"
	"github.com/hitoshi/heredeirxs/internal/config"
	"github.com/hitoshi/heredeirxs/internal/countdown"
	"github.com/hitoshi/heredeirxs/internal/dashboard"
	"github.com/hitoshi/heredeirxs/internal/database"
	"github.com/hitoshi/heredeirxs/internal/handler"
	"github.com/hitoshi/heredeirxs/internal/lineup"
	"github.com/hitoshi/heredeirxs/internal/logger"
	"github.com/hitoshi/heredeirxs/internal/match"
	"github.com/hitoshi/heredeirxs/internal/metrics"
	"github.com/hitoshi/heredeirxs/internal/middleware"
	"github.com/hitoshi/heredeirxs/internal/navigation"
	"github.com/hitoshi/heredeirxs/internal/news"
	"github.com/hitoshi/heredeirxs/internal/notification"
	"github.com/hitoshi/heredeirxs/internal/profile"
	"github.com/hitoshi/heredeirxs/internal/repository"
	"github.com/hitoshi/heredeirxs/internal/security"
	"github.com/hitoshi/heredeirxs/internal/weather"
	"github.com/hitoshi/heredeirxs/internal/worker/cleanup"
	"github.com/hitoshi/heredeirxs/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
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
	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, cmd)
	}
}

// openDatabase は設定のプール上限でDBを開く。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newTokenVerifier は設定に応じてJWKSまたは共有シークレットのトークン検証器を返す。
// 両方が設定されている場合はJWKSを優先する。
func newTokenVerifier(ctx context.Context, cfg *config.Config) (auth.TokenVerifier, error) {
	if cfg.AuthJWKSURL != "" {
		return auth.NewJWKSVerifier(ctx, cfg.AuthJWKSURL, nil, slog.Default())
	}
	return auth.NewHMACVerifier(cfg.AuthJWTSecret), nil
}

// newWeatherService は天気予報のクライアントとキャッシュ付きサービスを構築する。
func newWeatherService(cfg *config.Config, store repository.ClientStateRepository, recorder weather.LookupRecorder) (*weather.Service, error) {
	loc, err := time.LoadLocation(cfg.WeatherTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid weather timezone %q: %w", cfg.WeatherTimezone, err)
	}

	client := weather.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		slog.Default(),
		weather.ClientConfig{
			GeocodingEndpoint: cfg.WeatherGeocodingURL,
			ForecastEndpoint:  cfg.WeatherForecastURL,
			Location:          loc,
		},
	)
	return weather.NewService(client, store, recorder, weather.ServiceConfig{
		TTL:       cfg.WeatherCacheTTL,
		CacheSize: cfg.WeatherCacheSize,
		Location:  loc,
	})
}

// newNewsService はSSRF防止クライアントでフィードを取得するニュースサービスを構築する。
func newNewsService(cfg *config.Config, repo repository.NewsRepository, sanitizer *security.Sanitizer, recorder news.FetchRecorder) *news.Service {
	return news.NewService(
		repo,
		security.NewSafeClient(cfg.FetchTimeout),
		sanitizer,
		recorder,
		slog.Default(),
		news.ServiceConfig{FeedURL: cfg.NewsFeedURL, MaxBodySize: cfg.FetchMaxSize},
	)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	matchRepo := repository.NewPostgresMatchRepo(db)
	lineupRepo := repository.NewPostgresLineupRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	newsRepo := repository.NewPostgresNewsRepo(db)
	clientStateRepo := repository.NewPostgresClientStateRepo(db)

	// 3. メトリクスとセキュリティサービスの初期化
	reg, collector := newRegistry()
	sanitizer := security.NewSanitizer()

	// 4. 認証サービスの初期化
	verifier, err := newTokenVerifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}
	gotrue := auth.NewGoTrueClient(auth.GoTrueConfig{
		URL:     cfg.AuthURL,
		AnonKey: cfg.AuthAnonKey,
	})
	broker := auth.NewBroker()
	authService := auth.NewService(gotrue, verifier, sessionRepo, broker, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		RefreshMargin: cfg.TokenRefreshMargin,
	})

	// 5. プロフィール同期とルート整合の初期化
	// リコンサイラーはブローカーの唯一の購読者として認証イベントを受け取る
	profileService := profile.NewService(profileRepo, collector)
	reconciler := navigation.NewReconciler(profileService, authService, collector)
	unsubscribe := broker.Subscribe(reconciler.OnAuthEvent)
	defer unsubscribe()

	renderer, err := navigation.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load shell templates: %w", err)
	}

	// 6. ドメインサービスの初期化
	matchService := match.NewService(matchRepo)
	lineupService := lineup.NewService(matchService, lineupRepo)
	countdownService := countdown.NewService(matchService, clientStateRepo)
	weatherService, err := newWeatherService(cfg, clientStateRepo, collector)
	if err != nil {
		return err
	}
	notificationService := notification.NewService(notificationRepo, profileRepo, sanitizer)
	newsService := newNewsService(cfg, newsRepo, sanitizer, collector)
	dashboardService := dashboard.NewService(
		profileService, matchService, countdownService, weatherService, notificationService, newsService,
	)

	// 7. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		StatusRecorder:    collector,
		SessionReader:     authService,
		AdminChecker:      profileService,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Cookies: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		Reconciler:  reconciler,
		Renderer:    renderer,

		ProfileService:      profileService,
		MatchService:        matchService,
		WeatherService:      weatherService,
		LineupService:       lineupService,
		CountdownService:    countdownService,
		NotificationService: notificationService,
		DashboardService:    dashboardService,
		NewsService:         newsService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はサーバーを起動し、SIGINTまたはSIGTERMでグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、定期更新スケジューラとクリーンアップジョブを起動する。
// 取得系のメトリクスは専用ポートの/metricsで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	matchRepo := repository.NewPostgresMatchRepo(db)
	newsRepo := repository.NewPostgresNewsRepo(db)
	clientStateRepo := repository.NewPostgresClientStateRepo(db)

	// 3. サービスの初期化
	reg, collector := newRegistry()
	sanitizer := security.NewSanitizer()

	matchService := match.NewService(matchRepo)
	countdownService := countdown.NewService(matchService, clientStateRepo)
	weatherService, err := newWeatherService(cfg, clientStateRepo, collector)
	if err != nil {
		return err
	}
	newsService := newNewsService(cfg, newsRepo, sanitizer, collector)

	// 4. スケジューラの構築
	log := slog.Default()
	cleanupJob := cleanup.NewCleanupJob(db, log)
	cleanupJob.RetentionDays = cfg.NotificationRetentionDays

	scheduler := refresh.NewScheduler(log, 2,
		refresh.NewsTask(newsService, cfg.NewsFetchInterval, log),
		refresh.CountdownTask(countdownService, cfg.CountdownRefreshInterval, log),
		refresh.WeatherTask(matchService, weatherService, cfg.WeatherPrefetchInterval, log),
		refresh.Task{Name: "cleanup", Interval: cfg.CleanupInterval, Run: cleanupJob.Run},
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 5. メトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker starting",
		slog.Any("tasks", scheduler.Tasks()),
		slog.Duration("news_interval", cfg.NewsFetchInterval),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("applied", status.Applied),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
