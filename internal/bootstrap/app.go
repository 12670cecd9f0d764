package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"raptorfleet/internal/bootstrap/config"
	"raptorfleet/internal/bootstrap/database"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/schema"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
}

// resetSchema is swapped in tests to fail a rebuild halfway.
var resetSchema = schema.Reset

// InitSchema applies pending migrations. It is safe to run on every start.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	applied, err := schema.Migrate(ctx, a.DB)
	if err != nil {
		return errs.Wrap(err, "migrate schema")
	}
	version, err := schema.Version(ctx, a.DB)
	if err != nil {
		return errs.Wrap(err, "read schema version")
	}

	logging.Info(logCtx, "schema migration completed",
		slog.Int("applied", len(applied)),
		slog.Int64("version", version),
	)
	return nil
}

type RebuildOptions struct {
	// Backup copies the sqlite file aside before anything is dropped.
	Backup bool
	Now    time.Time
}

type RebuildResult struct {
	BackupPath string
	Version    int64
}

// RebuildSchema drops every table and migrates again. With Backup set the
// sqlite file is copied to <path>.bak.<unix> first, and copied back when the
// rebuild fails. A restored App has a closed DB and must not be reused.
func (a *App) RebuildSchema(ctx context.Context, opts RebuildOptions) (RebuildResult, error) {
	if ctx == nil {
		return RebuildResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return RebuildResult{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))

	var (
		result RebuildResult
		path   string
	)
	if opts.Backup {
		if a.DB.Dialector.Name() != "sqlite" {
			return RebuildResult{}, errors.New("backup is only supported for sqlite databases")
		}
		path = database.SQLitePath(a.Config.Database.DSN)
		if path == "" {
			logging.Warn(logCtx, "in-memory database has nothing to back up")
		} else {
			now := opts.Now
			if now.IsZero() {
				now = time.Now()
			}
			backup, err := database.BackupSQLite(ctx, a.DB, path, now)
			if err != nil {
				return RebuildResult{}, errs.Wrap(err, "back up database")
			}
			result.BackupPath = backup
		}
	}

	logging.Warn(logCtx, "rebuilding schema, stored rows are dropped")
	if _, err := resetSchema(ctx, a.DB); err != nil {
		if result.BackupPath == "" {
			return RebuildResult{}, errs.Wrap(err, "rebuild schema")
		}
		logging.Error(logCtx, "rebuild failed, restoring backup",
			slog.String("backup", result.BackupPath),
			slog.Any("err", errs.Loggable(err)),
		)
		if restoreErr := database.RestoreSQLite(ctx, a.DB, path, result.BackupPath); restoreErr != nil {
			return result, errors.Join(errs.Wrap(err, "rebuild schema"), errs.Wrap(restoreErr, "restore backup"))
		}
		return result, errs.Wrap(err, "rebuild schema (restored from backup)")
	}

	version, err := schema.Version(ctx, a.DB)
	if err != nil {
		return result, errs.Wrap(err, "read schema version")
	}
	result.Version = version

	logging.Info(logCtx, "schema rebuilt",
		slog.Int64("version", version),
		slog.String("backup", result.BackupPath),
	)
	return result, nil
}

func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errs.Wrap(err, "ping database")
	}
	return nil
}
