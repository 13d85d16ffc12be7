package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/youcast/internal/downloader"
	"github.com/italolelis/youcast/internal/http/rest"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

func serve(ctx context.Context, a *app) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Downloader
	board := rest.NewStatusBoard()

	d, err := a.newDownloader(ctx, downloader.NewLogObserver(), board)
	if err != nil {
		return err
	}

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, a, d, board)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Initializing API support", "host", a.cfg.Web.BindAddress, "output_dir", a.cfg.OutputDir, "durable_history", a.cfg.UsesDurableHistory())

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(sctx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	return g.Wait()
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, a *app, d *downloader.Downloader, board *rest.StatusBoard) *http.Server {
	handler := rest.NewDownloadHandler(d, a.history, board, a.cfg.RequestDefaults())

	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(a.telemetry).Middleware)

	r.Handle("/metrics", a.telemetry.Handler())
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         a.cfg.Web.BindAddress,
		ReadTimeout:  a.cfg.Web.ReadTimeout,
		WriteTimeout: a.cfg.Web.WriteTimeout,
		IdleTimeout:  a.cfg.Web.IdleTimeout,
		Handler:      a.telemetry.TraceHandler(r, "youcast"),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
