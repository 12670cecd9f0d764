package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
)

// Migrate brings the schema of db up to the latest version and returns the
// versions that were applied by this call.
func Migrate(ctx context.Context, db *gorm.DB) ([]int64, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	provider, err := newProvider(db)
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(withDialect(ctx, db.Dialector.Name()))
	if err != nil {
		return nil, errs.Wrap(err, "apply migrations")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "persistence.schema"))
	applied := make([]int64, 0, len(results))
	for _, result := range results {
		applied = append(applied, result.Source.Version)
		logging.Info(logCtx, "migration applied",
			slog.Int64("version", result.Source.Version),
			slog.Duration("duration", result.Duration),
		)
	}
	return applied, nil
}

// Reset rolls every migration back and applies them again, leaving an empty
// database at the latest version. All stored rows are lost.
func Reset(ctx context.Context, db *gorm.DB) ([]int64, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	provider, err := newProvider(db)
	if err != nil {
		return nil, err
	}

	dialectCtx := withDialect(ctx, db.Dialector.Name())
	logCtx := logging.WithAttrs(ctx, slog.String("component", "persistence.schema"))
	rolledBack, err := provider.DownTo(dialectCtx, 0)
	if err != nil {
		return nil, errs.Wrap(err, "roll back migrations")
	}
	for _, result := range rolledBack {
		logging.Info(logCtx, "migration rolled back", slog.Int64("version", result.Source.Version))
	}

	return Migrate(ctx, db)
}

// Version returns the current schema version, 0 for an empty database.
func Version(ctx context.Context, db *gorm.DB) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	provider, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "get schema version")
	}
	return version, nil
}

func newProvider(db *gorm.DB) (*goose.Provider, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.Wrap(err, "get sql db")
	}

	dialect, err := gooseDialect(db.Dialector.Name())
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, sqlDB, nil,
		goose.WithGoMigrations(migrations()...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return nil, errs.Wrap(err, "create migration provider")
	}
	return provider, nil
}

func gooseDialect(name string) (goose.Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, nil
	case "postgres":
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", name)
	}
}

func migrations() []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1, &goose.GoFunc{RunTx: upInit}, &goose.GoFunc{RunTx: downInit}),
	}
}

type dialectKey struct{}

func withDialect(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, dialectKey{}, name)
}

func dialectFromContext(ctx context.Context) string {
	name, _ := ctx.Value(dialectKey{}).(string)
	return name
}

// txDB opens a gorm handle bound to the migration transaction.
func txDB(tx *sql.Tx, dialect string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var dialector gorm.Dialector
	switch dialect {
	case "postgres":
		dialector = postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true})
	default:
		dialector = &gormsqlite.Dialector{Conn: tx}
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, errs.Wrap(err, "open gorm on migration tx")
	}
	return db, nil
}
