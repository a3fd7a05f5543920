package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/italolelis/telegroup_downloader/internal/config"
	"github.com/italolelis/telegroup_downloader/internal/diskguard"
	"github.com/italolelis/telegroup_downloader/internal/downloader"
	"github.com/italolelis/telegroup_downloader/internal/downloader/progress"
	"github.com/italolelis/telegroup_downloader/internal/http/rest"
	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/notifier"
	"github.com/italolelis/telegroup_downloader/internal/scheduler"
	"github.com/italolelis/telegroup_downloader/internal/storage"
	"github.com/italolelis/telegroup_downloader/internal/storage/sqlite"
	"github.com/italolelis/telegroup_downloader/internal/telegram"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
	"github.com/italolelis/telegroup_downloader/internal/transfer"
)

const (
	serviceName = "telegroup_downloader"
	dirPerm     = 0755
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(logctx.NewTraceHandler(handler))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("telegroup downloader starting...", "log_level", cfg.LogLevel, "version", version)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

// deps are the long-lived services shared by every harvest run.
type deps struct {
	telemetry *telemetry.Telemetry
	history   storage.HistoryRepository
	notifier  notifier.Notifier
	status    *rest.StatusStore
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	d := deps{telemetry: tel, status: rest.NewStatusStore()}

	// =========================================================================
	// Start Database
	if cfg.HistoryDBPath != "" {
		database, err := sqlite.InitDB(cfg.HistoryDBPath)
		if err != nil {
			logger.Error("DB error", "err", err)

			return err
		}
		defer database.Close()

		d.history = sqlite.NewInstrumentedHistoryRepository(database, tel)
	}

	// =========================================================================
	// Start Notification
	d.notifier, err = buildNotifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup notifications: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// =========================================================================
	// Start API Service
	if cfg.Web.BindAddress != "" {
		server := setupServer(ctx, cfg, d)

		g.Go(func() error {
			logger.Info("Initializing API support", "host", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-ctx.Done()

			logger.Info("start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to gracefully shutdown the server", "err", err)

				if err = server.Close(); err != nil {
					return fmt.Errorf("could not stop server gracefully: %w", err)
				}
			}

			return nil
		})
	}

	// =========================================================================
	// Start Harvest
	g.Go(func() error {
		// a single run ends the process, ambient services included
		defer cancel()

		return harvest(ctx, cfg, d)
	})

	return g.Wait()
}

func harvest(ctx context.Context, cfg *config.Config, d deps) error {
	logger := logctx.LoggerFromContext(ctx)

	if err := os.MkdirAll(cfg.DownloadDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	client := telegram.NewClient(telegram.Credentials{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		Phone:       cfg.Telegram.Phone,
		Password:    cfg.Telegram.Password,
		SessionPath: cfg.Telegram.SessionPath,
	}, os.Stdin, os.Stderr, d.telemetry)

	return client.Run(ctx, func(ctx context.Context) error {
		conn := client.Conn()
		defer conn.Close()

		session := transfer.NewSession(transfer.NewInstrumentedLink(conn, d.telemetry, "telegram"), client.HomeDC())
		fetcher := transfer.NewFetcher(transfer.NewInstrumentedTransferer(conn, d.telemetry), cfg.MaxRetries, d.telemetry)
		guard := diskguard.NewGuard(cfg.DownloadDir, cfg.MinFreeSpace.Bytes(), d.telemetry)

		var reporter progress.Reporter = progress.NewLogReporter()
		if cfg.Progress {
			reporter = progress.NewConsoleReporter(os.Stderr)
		}

		dl := downloader.NewDownloader(cfg.DownloadDir, client.Source(), fetcher, guard, d.history, reporter, d.telemetry)

		runOnce := func(ctx context.Context) {
			d.status.Begin(time.Now())
			reports := dl.Run(ctx, session, cfg.Feeds)
			d.status.Finish(time.Now(), reports)

			notifyRun(ctx, d.notifier, reports)
		}

		logger.Info("harvesting feeds",
			"feeds", cfg.Feeds,
			"download_dir", cfg.DownloadDir,
			"min_free_space", cfg.MinFreeSpace.String(),
			"max_retries", cfg.MaxRetries,
			"poll_interval", cfg.PollInterval.String(),
		)

		if cfg.PollInterval <= 0 {
			runOnce(ctx)

			return nil
		}

		return scheduler.Run(ctx, "harvest", cfg.PollInterval, runOnce)
	})
}

// buildNotifier returns nil when no notification channel is configured.
func buildNotifier(cfg *config.Config) (notifier.Notifier, error) {
	var notifiers notifier.Multi

	if cfg.DiscordWebhookURL != "" {
		notifiers = append(notifiers, &notifier.DiscordNotifier{WebhookURL: cfg.DiscordWebhookURL})
	}

	if cfg.Notify.BotToken != "" {
		tn, err := notifier.NewTelegramNotifier(cfg.Notify.BotToken, cfg.Notify.ChatID)
		if err != nil {
			return nil, err
		}

		notifiers = append(notifiers, tn)
	}

	if len(notifiers) == 0 {
		return nil, nil
	}

	return notifiers, nil
}

// notifyRun sends the run summary unless the run changed nothing.
func notifyRun(ctx context.Context, notif notifier.Notifier, reports []*downloader.FeedReport) {
	if notif == nil || !eventful(reports) {
		return
	}

	if err := notif.Notify(ctx, "📥 Harvest finished\n"+downloader.Summary(reports)); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to send notification", "err", err)
	}
}

func eventful(reports []*downloader.FeedReport) bool {
	for _, r := range reports {
		if r.Status == downloader.FeedAborted || r.Processed() > 0 {
			return true
		}
	}

	return false
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, cfg *config.Config, d deps) *http.Server {
	var metrics http.Handler
	if cfg.Telemetry.Enabled {
		metrics = d.telemetry.Handler()
	}

	ops := rest.NewOpsHandler(d.status, d.history, metrics)

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(d.telemetry).Middleware)
	r.Mount("/", ops.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      otelhttp.NewHandler(r, "ops"),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
