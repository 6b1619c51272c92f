package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/terraincognita07/stepdash/internal/api"
	"github.com/terraincognita07/stepdash/internal/cli"
	"github.com/terraincognita07/stepdash/internal/config"
	"github.com/terraincognita07/stepdash/internal/db"
	"github.com/terraincognita07/stepdash/internal/docstore"
	"github.com/terraincognita07/stepdash/internal/i18n"
	"github.com/terraincognita07/stepdash/internal/logging"
	"github.com/terraincognita07/stepdash/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCommand(config.NewViper()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:          "stepdash",
		Short:        "Step count dashboard",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("port", "", "HTTP port (PORT)")
	root.PersistentFlags().String("db-path", "", "SQLite database path (DB_PATH)")
	_ = v.BindPFlag("PORT", root.PersistentFlags().Lookup("port"))
	_ = v.BindPFlag("DB_PATH", root.PersistentFlags().Lookup("db-path"))

	root.AddCommand(
		newServeCommand(v),
		newImportCommand(v),
		newResetPasswordCommand(v),
	)
	return root
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newImportCommand(v *viper.Viper) *cobra.Command {
	var email string
	var path string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import step documents from a JSON or YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			deps, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer deps.close()

			_, err = cli.RunImportCommand(cmd.Context(), cli.ImportOptions{
				Users: db.NewRepositories(deps.database).Users,
				Store: deps.store,
				Email: email,
				Path:  path,
			}, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&email, "user", "", "email of the account that owns the documents")
	cmd.Flags().StringVar(&path, "file", "", "path to a .json, .yaml or .yml file")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newResetPasswordCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Set a temporary password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			database, err := db.OpenSQLite(cfg.DBPath, logger)
			if err != nil {
				return fmt.Errorf("database init failed: %w", err)
			}
			defer closeDatabase(database)

			auth := services.NewAuthService(db.NewRepositories(database).Users, []byte(cfg.SecretKey), services.NewLogMailer(logger), cfg.BaseURL, logger)
			return cli.RunResetPasswordCommand(auth, args[0], cmd.OutOrStdout())
		},
	}
}

type backend struct {
	logger   *zap.Logger
	database *gorm.DB
	store    docstore.Store
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	time.Local = cfg.Location

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.OpenSQLite(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := docstore.Open(ctx, docstore.Config{
		Driver:          cfg.StoreDriver,
		SQLite:          database,
		PostgresURL:     cfg.PostgresURL,
		ConnectAttempts: cfg.StoreConnectAttempts,
		Logger:          logger,
	})
	if err != nil {
		closeDatabase(database)
		return nil, fmt.Errorf("step store init failed: %w", err)
	}

	return &backend{logger: logger, database: database, store: store}, nil
}

func (deps *backend) close() {
	if err := deps.store.Close(); err != nil {
		deps.logger.Warn("step store close failed", zap.Error(err))
	}
	closeDatabase(deps.database)
	_ = deps.logger.Sync()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return logger, nil
}

func closeDatabase(database *gorm.DB) {
	if sqlDB, err := database.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newMailer(cfg config.Config, logger *zap.Logger) services.Mailer {
	if !cfg.SMTP.Enabled() {
		logger.Info("SMTP_HOST not set, password reset links are written to the log")
		return services.NewLogMailer(logger)
	}
	return services.NewSMTPMailer(services.SMTPSettings{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func serve(ctx context.Context, cfg config.Config) error {
	deps, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close()
	logger := deps.logger

	i18nManager, err := i18n.NewManager(cfg.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("i18n init failed: %w", err)
	}

	repositories := db.NewRepositories(deps.database)
	handler, err := api.NewHandler(api.Dependencies{
		Auth: services.NewAuthService(repositories.Users, []byte(cfg.SecretKey), newMailer(cfg, logger), cfg.BaseURL, logger),
		Dashboards: services.NewDashboardService(deps.store, services.DashboardOptions{
			Location:     cfg.Location,
			RecentLimit:  cfg.RecentLimit,
			QueryTimeout: cfg.StoreQueryTimeout,
			Logger:       logger,
		}),
		I18n:         i18nManager,
		Location:     cfg.Location,
		CookieSecure: cfg.CookieSecure,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("handler init failed: %w", err)
	}

	app := newApp(handler, cfg, logger)

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("stepdash listening",
		zap.String("addr", "http://0.0.0.0:"+cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.String("tz", cfg.Location.String()),
	)
	if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info("stepdash stopped")
	return nil
}

func newApp(handler *api.Handler, cfg config.Config, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Stepdash",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(api.RequestLogger(logger))
	app.Use(compress.New())
	app.Use(handler.LanguageMiddleware)
	app.Use(csrf.New(csrfMiddlewareConfig(cfg.CookieSecure)))

	api.RegisterRoutes(app, handler)
	app.Use(handler.NotFound)
	return app
}

// JSON requests skip the token check: browsers cannot send them cross-site
// without a CORS preflight.
func csrfMiddlewareConfig(cookieSecure bool) csrf.Config {
	return csrf.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Is("json")
		},
		KeyLookup:      "form:csrf_token",
		CookieName:     "stepdash_csrf",
		CookieSameSite: "Lax",
		CookieHTTPOnly: true,
		CookieSecure:   cookieSecure,
		ContextKey:     "csrf",
	}
}
