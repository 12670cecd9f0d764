package schema

import (
	"context"
	"database/sql"
	"slices"

	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/sqlite/model"
)

func upInit(ctx context.Context, tx *sql.Tx) error {
	db, err := txDB(tx, dialectFromContext(ctx))
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "create tables")
	}
	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	db, err := txDB(tx, dialectFromContext(ctx))
	if err != nil {
		return err
	}
	tables := model.All()
	slices.Reverse(tables)
	if err := db.WithContext(ctx).Migrator().DropTable(tables...); err != nil {
		return errs.Wrap(err, "drop tables")
	}
	return nil
}
