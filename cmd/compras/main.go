package main

import (
	"context"
	"fmt"
	"os"

	"compras/db"
	"compras/internal/config"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "compras",
		Short:         "Compras - ciclo de vida de demandas de compra municipais",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup читает конфигурацию, настраивает логгер и открывает базу.
func setup(ctx context.Context) (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log.level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	conn, err := db.Connect(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.ConnectRetries)
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}
