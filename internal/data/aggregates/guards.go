package aggregates

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

// CASGuard moves lifecycle rows (payments, enrollments) between statuses with a
// compare-and-set on the current status, so a transition applies at most once.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) conn(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByStatus applies updates to table row id only while its status is one of from.
// It reports false when the row was already moved by someone else.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, from []string, updates map[string]any) (bool, error) {
	db, err := g.conn(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for a status transition")
	}
	if len(from) == 0 {
		return false, ValidationError("at least one source status is required")
	}
	if len(updates) == 0 {
		return false, ValidationError("a status transition needs updates")
	}
	res := db.Table(table).
		Where("id = ? AND status IN ?", id, from).
		Updates(stampUpdatedAt(updates))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Table updates bypass model hooks, so updated_at is stamped here.
func stampUpdatedAt(updates map[string]any) map[string]any {
	out := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		out[k] = v
	}
	if _, ok := out["updated_at"]; !ok {
		out["updated_at"] = time.Now().UTC()
	}
	return out
}

// Claim stamps column with at on row id while its status is one of from and the
// column is unset or older than staleBefore. False means another caller holds it
// or the status already moved.
func (g CASGuard) Claim(dbc dbctx.Context, table string, id uuid.UUID, from []string, column string, at, staleBefore time.Time) (bool, error) {
	db, err := g.conn(dbc)
	if err != nil {
		return false, err
	}
	table, column = strings.TrimSpace(table), strings.TrimSpace(column)
	if table == "" || column == "" || id == uuid.Nil {
		return false, ValidationError("table, column and id are required for a claim")
	}
	if len(from) == 0 {
		return false, ValidationError("at least one source status is required")
	}
	res := db.Table(table).
		Where("id = ? AND status IN ?", id, from).
		Where("("+column+" IS NULL OR "+column+" < ?)", staleBefore).
		Updates(stampUpdatedAt(map[string]any{column: at}))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Release clears a claim taken with Claim while the row is still in one of from.
func (g CASGuard) Release(dbc dbctx.Context, table string, id uuid.UUID, from []string, column string) error {
	db, err := g.conn(dbc)
	if err != nil {
		return err
	}
	table, column = strings.TrimSpace(table), strings.TrimSpace(column)
	if table == "" || column == "" || id == uuid.Nil {
		return ValidationError("table, column and id are required to release a claim")
	}
	return db.Table(table).
		Where("id = ? AND status IN ?", id, from).
		Updates(stampUpdatedAt(map[string]any{column: nil})).Error
}
