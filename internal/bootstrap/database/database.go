package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"raptorfleet/internal/bootstrap/config"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
)

const defaultBusyTimeout = 5 * time.Second

func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.database"))
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		db     *gorm.DB
		err    error
		driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	)
	switch driver {
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}
		dsn := SQLiteDSN(cfg.DSN, cfg.BusyTimeout)
		db, err = gorm.Open(gormsqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, errs.Wrap(err, "open sqlite db")
		}
		logging.Info(logCtx, "database opened", slog.String("driver", "sqlite"), slog.String("dsn", dsn))
	case "postgres", "postgresql", "pgx":
		db, err = gorm.Open(postgres.New(postgres.Config{DSN: cfg.DSN}), gormCfg)
		if err != nil {
			return nil, errs.Wrap(err, "open postgres db")
		}
		logging.Info(logCtx, "database opened", slog.String("driver", "postgres"))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errs.Wrap(err, "get sql db")
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// SQLiteDSN adds the pragmas the store depends on: WAL so readers never block
// the writer, NORMAL sync, and a busy timeout so concurrent writers queue
// instead of failing. Pragmas already present in dsn win.
func SQLiteDSN(dsn string, busyTimeout time.Duration) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == ":memory:" {
		return dsn
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	pragmas := []struct {
		name  string
		value string
	}{
		{name: "busy_timeout", value: fmt.Sprintf("%d", busyTimeout.Milliseconds())},
		{name: "journal_mode", value: "WAL"},
		{name: "synchronous", value: "NORMAL"},
	}

	lower := strings.ToLower(dsn)
	var extra []string
	for _, p := range pragmas {
		if strings.Contains(lower, "_pragma="+p.name) {
			continue
		}
		extra = append(extra, fmt.Sprintf("_pragma=%s(%s)", p.name, p.value))
	}
	if len(extra) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(extra, "&")
}

// SQLitePath returns the file behind a sqlite dsn, or "" for an in-memory
// database.
func SQLitePath(dsn string) string {
	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = candidate[len("file:"):]
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	if candidate == ":memory:" {
		return ""
	}
	return candidate
}

func ensureSQLiteDirectory(ctx context.Context, dsn string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	candidate := SQLitePath(dsn)
	if candidate == "" {
		return nil
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.database")), "sqlite directory ensured", slog.String("dir", dir))
	return nil
}
