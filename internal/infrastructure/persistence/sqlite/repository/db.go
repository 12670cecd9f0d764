package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"raptorfleet/internal/ports"
)

// singletonID is the primary key of single-row tables.
const singletonID = 1

type base struct {
	db *gorm.DB
}

// dbFromContext returns the transaction stored in ctx by the unit of work,
// or the root handle when there is none.
func (b base) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return b.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(fragment string) string {
	return "%" + likeEscaper.Replace(fragment) + "%"
}
