package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type PaymentRepo interface {
	Create(dbc dbctx.Context, rows []*billing.Payment) ([]*billing.Payment, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.Payment, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*billing.Payment, error)

	LockByID(dbc dbctx.Context, id uuid.UUID) (*billing.Payment, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type paymentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentRepo(db *gorm.DB, baseLog *logger.Logger) PaymentRepo {
	return &paymentRepo{db: db, log: baseLog.With("repo", "PaymentRepo")}
}

func (r *paymentRepo) Create(dbc dbctx.Context, rows []*billing.Payment) ([]*billing.Payment, error) {
	if len(rows) == 0 {
		return []*billing.Payment{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *paymentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*billing.Payment, error) {
	return r.findOne(dbc.DB(r.db), id)
}

func (r *paymentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*billing.Payment, error) {
	return r.findOne(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *paymentRepo) findOne(q *gorm.DB, id uuid.UUID) (*billing.Payment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*billing.Payment
	if err := q.Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *paymentRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*billing.Payment, error) {
	var out []*billing.Payment
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *paymentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&billing.Payment{}).Where("id = ?", id).Updates(updates).Error
}
