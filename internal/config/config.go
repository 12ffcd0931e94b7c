// Package config собирает настройки из YAML-файла и переменных окружения.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DB     DBConfig     `mapstructure:"db"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Notify NotifyConfig `mapstructure:"notify"`
	SMTP   SMTPConfig   `mapstructure:"smtp"`
}

type DBConfig struct {
	Driver         string `mapstructure:"driver"`
	DSN            string `mapstructure:"dsn"`
	ConnectRetries uint64 `mapstructure:"connect_retries"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type NotifyConfig struct {
	Workers   int    `mapstructure:"workers"`
	Transport string `mapstructure:"transport"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.connect_retries", 5)
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.transport", "log")
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "compras@localhost")
}

// Load читает конфигурацию. path может быть пустым - тогда только значения по умолчанию и окружение.
// Переменные окружения: COMPRAS_DB_DSN, COMPRAS_SMTP_HOST и т.д.; POSTGRES_CONN и SERVER_ADDRESS
// поддерживаются как прежде.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COMPRAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("db.dsn", "COMPRAS_DB_DSN", "POSTGRES_CONN"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("server.address", "COMPRAS_SERVER_ADDRESS", "SERVER_ADDRESS"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("db.driver must be postgres or sqlite3, got %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is not set (POSTGRES_CONN or COMPRAS_DB_DSN)")
	}
	switch c.Notify.Transport {
	case "smtp", "log":
	default:
		return fmt.Errorf("notify.transport must be smtp or log, got %q", c.Notify.Transport)
	}
	if c.Notify.Workers < 1 {
		return fmt.Errorf("notify.workers must be positive")
	}
	return nil
}
