package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"compras/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified concurrently")
)

type Storage struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Connect открывает соединение и пингует базу, повторяя попытки с экспоненциальной задержкой.
func Connect(ctx context.Context, driver, dsn string, retries uint64) (*sqlx.DB, error) {
	var conn *sqlx.DB
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := sqlx.ConnectContext(ctx, driver, dsn)
		if err != nil {
			logrus.WithError(err).WithField("driver", driver).Warn("database not reachable, retrying")
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		// SQLite допускает одного писателя; для :memory: это ещё и одна общая база
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}
	return conn, nil
}

// withTx выполняет fn в транзакции; любая ошибка откатывает все изменения.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logrus.WithError(rbErr).Error("rollback failed")
		}
		return err
	}
	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func get(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query string, args ...interface{}) error {
	return notFound(sqlx.GetContext(ctx, q, dest, sqlx.Rebind(sqlx.BindType(driverOf(q)), query), args...))
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q, dest, sqlx.Rebind(sqlx.BindType(driverOf(q)), query), args...)
}

func exec(ctx context.Context, e sqlx.ExecerContext, query string, args ...interface{}) (sql.Result, error) {
	return e.ExecContext(ctx, sqlx.Rebind(sqlx.BindType(driverOf(e)), query), args...)
}

// driverOf достаёт имя драйвера у *sqlx.DB или *sqlx.Tx для правильных плейсхолдеров.
func driverOf(v interface{}) string {
	switch c := v.(type) {
	case *sqlx.DB:
		return c.DriverName()
	case *sqlx.Tx:
		return c.DriverName()
	}
	return ""
}

// Department (Секретария)

func (s *Storage) CreateDepartment(ctx context.Context, d *models.Department) error {
	d.CreatedAt = s.now()
	_, err := exec(ctx, s.db, `INSERT INTO departments (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		d.ID, d.Name, d.Email, d.CreatedAt)
	return err
}

func (s *Storage) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	d := &models.Department{}
	err := get(ctx, s.db, d, `SELECT id, name, email, created_at FROM departments WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// User (Пользователь)

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = s.now()
	_, err := exec(ctx, s.db, `
        INSERT INTO users (id, username, full_name, email, role, department_id, supplier_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.FullName, u.Email, u.Role, u.DepartmentID, u.SupplierID, u.CreatedAt)
	return err
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	err := get(ctx, s.db, u, `
        SELECT id, username, full_name, email, role, department_id, supplier_id, created_at
        FROM users WHERE username = ?`, username)
	if err != nil {
		return nil, err
	}
	return u, nil
}
