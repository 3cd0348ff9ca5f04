package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"liontech/auth"
	"liontech/automation"
	"liontech/backup"
	"liontech/chat"
	"liontech/checkout"
	"liontech/config"
	"liontech/database"
	"liontech/httpx"
	"liontech/loader"
	"liontech/order"
	"liontech/payment"
	"liontech/realtime"
	"liontech/scheduler"
	"liontech/storage"
	"liontech/whatsapp"
)

var (
	verbose bool
	envFile string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "liontech",
	Short: "Lion Tech storefront, checkout and dashboard server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and background jobs",
	RunE:  runServe,
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.AddCommand(serveCmd)
	addCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// application holds the long-lived dependencies shared by the routes and
// the background jobs.
type application struct {
	env      config.Env
	db       *sqlx.DB
	log      *zap.Logger
	auth     *auth.Service
	hub      *realtime.Hub
	store    storage.Store
	notifier *whatsapp.Notifier
	gateway  payment.Gateway
	orders   *order.Service
	checkout *checkout.Service
	chat     *chat.Service
	backups  *backup.Runner
	pdf      *automation.PDFRenderer
	proxies  httpx.TrustedProxies
}

// openDatabase loads the environment and settings and returns a migrated
// database.
func openDatabase(ctx context.Context) (config.Env, *sqlx.DB, error) {
	env, err := config.LoadEnv(envFile)
	if err != nil {
		return config.Env{}, nil, err
	}
	config.SetPath(env.SettingsPath)
	if _, err := config.LoadConfig(); err != nil {
		logger.Warn("failed to load settings file, using defaults", zap.Error(err))
	}

	logger.Info("connecting to database", zap.String("driver", env.DBDriver))
	db, err := database.Open(env.DBDriver, env.DBDSN)
	if err != nil {
		return config.Env{}, nil, err
	}
	if err := loader.InitDatabase(ctx, db, logger); err != nil {
		db.Close()
		return config.Env{}, nil, fmt.Errorf("database initialization failed: %w", err)
	}
	return env, db, nil
}

func newStore(ctx context.Context, env config.Env) (storage.Store, error) {
	if env.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    env.S3Bucket,
			Region:    env.S3Region,
			Endpoint:  env.S3Endpoint,
			AccessKey: env.S3AccessKey,
			SecretKey: env.S3SecretKey,
			PathStyle: env.S3PathStyle,
			PublicURL: env.S3PublicURL,
		})
	}
	return storage.NewLocalStore(env.StorageDir, strings.TrimRight(env.PublicURL, "/")+"/media")
}

func newApplication(ctx context.Context) (*application, error) {
	env, db, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	store, err := newStore(ctx, env)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	proxies, err := httpx.ParseTrustedProxies(env.TrustedProxies)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("LIONTECH_TRUSTED_PROXIES: %w", err)
	}

	var sender whatsapp.Sender
	if env.WhatsAppBaseURL != "" {
		sender = whatsapp.NewClient(env.WhatsAppBaseURL, env.WhatsAppAPIKey, env.WhatsAppInstance)
	} else {
		logger.Warn("WHATSAPP_BASE_URL not set, notifications disabled")
	}
	if env.PaymentAccessToken == "" {
		logger.Warn("PAYMENT_ACCESS_TOKEN not set, checkout payments will fail")
	}

	app := &application{
		env:     env,
		db:      db,
		log:     logger,
		auth:    auth.NewService(db, env.JWTSecret, env.SessionTTL),
		hub:     realtime.NewHub(logger.Named("realtime")),
		store:   store,
		gateway: payment.NewClient(env.PaymentBaseURL, env.PaymentAccessToken),
		pdf:     automation.NewPDFRenderer(env.ChromePath, logger.Named("pdf")),
		proxies: proxies,
	}
	app.hub.AllowOrigins(env.PublicURL)
	app.notifier = whatsapp.NewNotifier(sender, logger.Named("whatsapp"), config.GetConfig)
	app.orders = order.NewService(db, app.notifier, app.hub, logger.Named("order"))
	app.checkout = checkout.NewService(db, app.gateway, app.orders, app.notifier, logger.Named("checkout"), config.GetConfig, env.PublicURL)
	app.chat = chat.NewService(db, app.hub, app.notifier, logger.Named("chat"), config.GetConfig)
	app.backups = backup.NewRunner(db, store, logger.Named("backup"))
	return app, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.db.Close()

	srv := &http.Server{
		Addr:              app.env.ListenAddr,
		Handler:           SetupRoutes(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("publicURL", app.env.PublicURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server start error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return app.hub.Run(gctx) })
	g.Go(func() error {
		return scheduler.New(app.orders, app.backups, config.GetConfig, logger.Named("scheduler")).Run(gctx)
	})
	return g.Wait()
}
