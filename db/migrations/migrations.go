package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

const migrationDir = "sql"

// prepare настраивает goose: встроенные файлы миграций, диалект и логгер.
func prepare(driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(logrus.StandardLogger())

	dialect := driver
	if driver == "sqlite" {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect %q: %w", dialect, err)
	}
	return nil
}

// Run выполняет все миграции из встроенной папки sql/
func Run(db *sql.DB, driver string) error {
	if err := prepare(driver); err != nil {
		return err
	}
	logrus.WithField("driver", driver).Info("running migrations")
	if err := goose.Up(db, migrationDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Status печатает состояние миграций через логгер goose.
func Status(db *sql.DB, driver string) error {
	if err := prepare(driver); err != nil {
		return err
	}
	return goose.Status(db, migrationDir)
}

// Version возвращает номер последней применённой миграции.
func Version(db *sql.DB, driver string) (int64, error) {
	if err := prepare(driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}
