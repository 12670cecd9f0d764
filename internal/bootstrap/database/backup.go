package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
)

// BackupPath names the copy taken of path at now: <path>.bak.<unix seconds>.
func BackupPath(path string, now time.Time) string {
	return fmt.Sprintf("%s.bak.%d", path, now.Unix())
}

// BackupSQLite checkpoints the WAL into the main file of the database at path
// and copies that file to BackupPath. db must be the open handle on path.
func BackupSQLite(ctx context.Context, db *gorm.DB, path string, now time.Time) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if db == nil {
		return "", errors.New("database is required")
	}
	if path == "" {
		return "", errors.New("sqlite path is required")
	}

	if err := db.WithContext(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return "", errs.Wrap(err, "checkpoint wal")
	}

	target := BackupPath(path, now)
	if err := copyFile(path, target); err != nil {
		return "", errs.Wrapf(err, "copy %q to %q", path, target)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.database")), "sqlite backup created",
		slog.String("path", path),
		slog.String("backup", target),
	)
	return target, nil
}

// RestoreSQLite closes db and copies backup over path. The WAL and shared
// memory files of path are removed first so the restored file is read as is.
// db is unusable afterwards.
func RestoreSQLite(ctx context.Context, db *gorm.DB, path string, backup string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if db == nil {
		return errors.New("database is required")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}
	if err := sqlDB.Close(); err != nil {
		return errs.Wrap(err, "close sql db")
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errs.Wrapf(err, "remove %q", path+suffix)
		}
	}
	if err := copyFile(backup, path); err != nil {
		return errs.Wrapf(err, "copy %q to %q", backup, path)
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.database")), "sqlite restored from backup",
		slog.String("path", path),
		slog.String("backup", backup),
	)
	return nil
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
