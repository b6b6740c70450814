package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seuros/leadtrack/internal/config"
	"github.com/seuros/leadtrack/internal/database"
	"github.com/seuros/leadtrack/internal/geoip"
	"github.com/seuros/leadtrack/internal/handlers"
	"github.com/seuros/leadtrack/internal/ingest"
	"github.com/seuros/leadtrack/internal/logging"
	"github.com/seuros/leadtrack/internal/metrics"
	"github.com/seuros/leadtrack/internal/middleware"
	"github.com/seuros/leadtrack/internal/models"
	"github.com/seuros/leadtrack/internal/realtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the ingestion and dashboard API.

Pending migrations are applied on start unless --skip-migrations is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveSkipMigrations bool

const shutdownTimeout = 10 * time.Second

// server bundles what the HTTP routes need.
type server struct {
	cfg     *config.Config
	store   *models.Store
	svc     *ingest.Service
	hub     *realtime.Hub
	metrics *metrics.Metrics
	ping    func(context.Context) error
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set (use --database-url, leadtrack.toml or the environment)")
	}
	log := logging.Named("server")

	if err := database.ConnectWithURL(cfg.DatabaseURL); err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if !serveSkipMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	hub := realtime.NewHub()
	publisher, closePublisher := startRealtime(ctx, cfg.DatabaseURL, hub, log)
	defer closePublisher()

	geo := &geoip.Locator{}
	if cfg.GeoIPEnabled {
		geo = geoip.Open(ctx, cfg.DataDir, true)
	}
	defer func() { _ = geo.Close() }()

	store := models.NewStore(database.DB)
	svc := ingest.NewService(store,
		ingest.WithLocator(geo),
		ingest.WithPublisher(publisher),
		ingest.WithObserver(m.ObserveIngest),
	)
	srv := &server{
		cfg:     cfg,
		store:   store,
		svc:     svc,
		hub:     hub,
		metrics: m,
		ping:    database.Ping,
	}
	app := srv.newApp()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	log.Info("server listening",
		zap.String("port", cfg.Port),
		zap.String("proxy_mode", cfg.ProxyMode),
		zap.Bool("geoip", geo.Enabled()),
		zap.Bool("metrics", m != nil))

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// startRealtime publishes through pg_notify and relays notifications into
// hub. Without a pgx pool events are only broadcast inside this process.
func startRealtime(ctx context.Context, databaseURL string, hub *realtime.Hub, log *zap.Logger) (ingest.Publisher, func()) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		log.Warn("pg_notify unavailable; live feed limited to this process", zap.Error(err))
		return hub, func() {}
	}

	go func() { _ = realtime.NewListener(databaseURL, hub).Run(ctx) }()
	return realtime.NewNotifier(pool), pool.Close
}

func (s *server) newApp() *fiber.App {
	app := fiber.New(createFiberConfig("leadtrack"))

	app.Use(recover.New())
	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logging.Named("http"),
	}))

	app.Get("/health", handlers.HandleHealth)
	app.Get("/ready", handlers.HandleReady(s.ping))
	if s.metrics != nil {
		app.Get("/metrics", handlers.HandleMetrics(s.metrics))
	}

	// Widgets post from arbitrary origins; the API key is the credential.
	ingestCORS := cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{fiber.MethodPost, fiber.MethodOptions},
		AllowHeaders: []string{fiber.HeaderAuthorization, fiber.HeaderContentType, "X-API-Key"},
	})
	ingestHandler := handlers.NewIngestHandler(s.svc, s.cfg.ProxyMode)
	app.Post("/api/v1/events", ingestCORS, middleware.APIKeyAuth, ingestHandler.Handle)
	app.Options("/api/v1/events", ingestCORS)

	dashboard := app.Group("/api/dashboard")
	if len(s.cfg.TrustedOrigins) > 0 {
		dashboard.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.TrustedOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{fiber.HeaderAuthorization, fiber.HeaderContentType},
		}))
	}
	dashboard.Use(middleware.UserAuth(s.cfg.JWTSecret))
	handlers.NewDashboard(s.store, s.hub, s.metrics).Register(dashboard)

	return app
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrations, "skip-migrations", false, "Do not apply pending migrations on start")

	RootCmd.AddCommand(serveCmd)
}
