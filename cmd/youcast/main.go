package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/italolelis/youcast/internal/config"
	"github.com/italolelis/youcast/internal/downloader"
	"github.com/italolelis/youcast/internal/engine"
	"github.com/italolelis/youcast/internal/engine/ytdlp"
	"github.com/italolelis/youcast/internal/history"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/notifier"
	"github.com/italolelis/youcast/internal/storage"
	"github.com/italolelis/youcast/internal/storage/memory"
	"github.com/italolelis/youcast/internal/storage/sqlite"
	"github.com/italolelis/youcast/internal/strategy"
	"github.com/italolelis/youcast/internal/telemetry"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app holds the services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	history   *history.Store
	db        *sql.DB
}

// bootstrap loads the configuration and starts logging, telemetry and the history
// store. Logs are written to logOut.
func bootstrap(ctx context.Context, logOut io.Writer) (context.Context, *app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return ctx, nil, fmt.Errorf("config error: %w", err)
	}

	logger := newLogger(cfg, logOut)
	slog.SetDefault(logger)

	ctx = logctx.WithLogger(ctx, logger)

	a := &app{cfg: cfg, logger: logger}

	// =========================================================================
	// Start Telemetry
	a.telemetry, err = telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// =========================================================================
	// Start History
	var repo storage.HistoryRepository = memory.NewHistoryRepository()

	if cfg.UsesDurableHistory() {
		a.db, err = sqlite.InitDB(cfg.HistoryDBPath)
		if err != nil {
			logger.Error("DB error", "err", err)

			return ctx, nil, err
		}

		repo = sqlite.NewInstrumentedHistoryRepository(a.db, a.telemetry)
	}

	a.history = history.NewStore(repo)

	return ctx, a, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(logctx.NewContextHandler(handler))
}

// newDownloader checks the yt-dlp binary and wires the download pipeline. Discord
// notifications are added when a webhook is configured.
func (a *app) newDownloader(ctx context.Context, observers ...downloader.Observer) (*downloader.Downloader, error) {
	logger := logctx.LoggerFromContext(ctx)

	client := ytdlp.NewClient(a.cfg.YtDlpPath, ytdlp.WithExtraArgs(a.cfg.YtDlpExtraArgs...))

	v, err := client.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp is not available: %w", err)
	}

	logger.Info("media engine ready", "engine", "yt-dlp", "version", v, "binary", a.cfg.YtDlpPath)

	if a.cfg.DiscordWebhookURL != "" {
		observers = append(observers, notifier.NewBatchNotifier(notifier.NewDiscordNotifier(a.cfg.DiscordWebhookURL)))
	}

	cascade := strategy.NewCascade(engine.NewInstrumentedEngine(client, "yt-dlp", a.telemetry), a.telemetry)

	return downloader.NewDownloader(cascade, a.history, a.telemetry, downloader.WithObservers(observers...)), nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error

	if a.db != nil {
		errs = append(errs, a.db.Close())
	}

	errs = append(errs, a.telemetry.Shutdown(ctx))

	return errors.Join(errs...)
}
