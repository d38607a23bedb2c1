package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type EnrollmentRepo interface {
	Create(dbc dbctx.Context, rows []*learning.Enrollment) ([]*learning.Enrollment, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*learning.Enrollment, error)
	GetByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*learning.Enrollment, error)
	ListExpirable(dbc dbctx.Context, now time.Time, limit int) ([]*learning.Enrollment, error)

	LockByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) Create(dbc dbctx.Context, rows []*learning.Enrollment) ([]*learning.Enrollment, error) {
	if len(rows) == 0 {
		return []*learning.Enrollment{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *enrollmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*learning.Enrollment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*learning.Enrollment
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *enrollmentRepo) GetByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	return r.findOne(dbc.DB(r.db), userID, courseID)
}

func (r *enrollmentRepo) LockByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	return r.findOne(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), userID, courseID)
}

func (r *enrollmentRepo) findOne(q *gorm.DB, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var out []*learning.Enrollment
	err := q.Where("user_id = ? AND course_id = ?", userID, courseID).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *enrollmentRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*learning.Enrollment, error) {
	var out []*learning.Enrollment
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Order("enrolled_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) ListExpirable(dbc dbctx.Context, now time.Time, limit int) ([]*learning.Enrollment, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []*learning.Enrollment
	err := dbc.DB(r.db).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", learning.EnrollmentActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *enrollmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&learning.Enrollment{}).Where("id = ?", id).Updates(updates).Error
}
