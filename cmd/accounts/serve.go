// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/account/postgres"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/httpapi"
	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/internal/notify"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
)

const (
	serviceName     = "accounts"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the accounts HTTP API",
		Long: `Start the HTTP API, the metrics/health server and the background
email dispatcher. The token secret and database URL are required.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the service until a signal arrives, ctx is
// cancelled, or a server fails. If deps is nil, defaults are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = func(ctx context.Context, dsn string, retries uint64) (Pool, error) {
			pool, err := store.Connect(ctx, dsn, retries)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	logger.Info("starting accounts service", "config", cfg)

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, cfg.Database.Retries)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	}

	dispatcher, err := newNotifier(cfg, logger, metrics)
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	svc, err := newAccountService(cfg, pool, dispatcher, logger)
	if err != nil {
		closeDispatcher(dispatcher)
		stopObservability(obsServer)
		return err
	}

	api := httpapi.NewHandler(svc,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(metrics),
		httpapi.WithAllowedOrigins(cfg.CORS.Origins),
	)

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		closeDispatcher(dispatcher)
		stopObservability(obsServer)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	httpErrChan := make(chan error, 1)
	go func() {
		defer close(httpErrChan)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Accounts service started")
	logger.Info("accounts service ready", "http_addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-httpErrChan:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping HTTP server", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// newNotifier builds the email pipeline. Without an SMTP host, events are
// still queued and counted but never leave the process.
func newNotifier(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*notify.Dispatcher, error) {
	composer, err := notify.NewComposer(cfg.Mail.From)
	if err != nil {
		return nil, err
	}

	var sender notify.Sender
	if cfg.MailEnabled() {
		sender, err = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			Timeout:  cfg.Mail.Timeout,
		})
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("mail.host not set, email notifications are disabled")
		sender = notify.DisabledSender()
	}

	return notify.NewDispatcher(notify.NewMailer(composer, sender),
		notify.WithQueueSize(cfg.Mail.Queue),
		notify.WithRetries(cfg.Mail.Retries),
		notify.WithDispatcherLogger(logger),
		notify.WithResultHook(func(kind account.EventKind, result string) {
			metrics.RecordNotification(string(kind), result)
		}),
	), nil
}

func newAccountService(cfg *config.Config, pool Pool, notifier account.Notifier, logger *slog.Logger) (*account.Service, error) {
	hasher, err := account.NewBcryptHasherWithCost(cfg.Bcrypt.Cost)
	if err != nil {
		return nil, err
	}
	tokens, err := account.NewTokenIssuer(cfg.Token.Secret,
		account.WithTokenTTL(cfg.Token.TTL),
		account.WithTokenIssuerName(serviceName),
	)
	if err != nil {
		return nil, err
	}
	return account.NewService(postgres.NewUserRepository(pool), hasher, tokens, notifier,
		account.WithLogger(logger))
}

func closeDispatcher(d *notify.Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = d.Close(ctx)
}

func stopObservability(s ObservabilityServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
