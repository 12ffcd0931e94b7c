package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"compras/db"
	"compras/db/migrations"
	"compras/internal/config"
	"compras/internal/handlers"
	"compras/internal/lifecycle"
	"compras/internal/notify"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and start the HTTP API",
		Long: `Start the API server.

Examples:
  compras serve
  compras serve --config /etc/compras.yaml --addr :9090
  POSTGRES_CONN=postgres://... compras serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Notify.Transport == "smtp" {
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	return notify.LogNotifier{Log: logrus.StandardLogger()}
}

func runServe(ctx context.Context, addr string) error {
	cfg, conn, err := setup(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := migrations.Run(conn.DB, cfg.DB.Driver); err != nil {
		return err
	}

	catalog, err := notify.DefaultCatalog()
	if err != nil {
		return err
	}
	log := logrus.StandardLogger()
	store := db.NewStorage(conn)
	dispatcher := notify.NewDispatcher(newNotifier(cfg), catalog, cfg.Notify.Workers, log)
	engine := lifecycle.New(store, dispatcher, log)
	h := handlers.NewHandler(engine, store, log)

	if addr == "" {
		addr = cfg.Server.Address
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "transport": cfg.Notify.Transport}).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
