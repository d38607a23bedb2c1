package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, rows []*catalog.Course) ([]*catalog.Course, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*catalog.Course, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Course, error)
	GetWithLectures(dbc dbctx.Context, id uuid.UUID) (*catalog.Course, error)
	ListPublished(dbc dbctx.Context, limit, offset int) ([]*catalog.Course, error)
	ListByInstructorID(dbc dbctx.Context, instructorID uuid.UUID) ([]*catalog.Course, error)

	LockByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Course, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// IncrementStudents adds delta to total_students in a single statement.
	IncrementStudents(dbc dbctx.Context, id uuid.UUID, delta int64) (bool, error)
	// ApplyRating folds rating into the running mean in a single statement.
	ApplyRating(dbc dbctx.Context, id uuid.UUID, rating int) (bool, error)
	// SetRatingSummary overwrites rating and total_reviews after a full recompute.
	SetRatingSummary(dbc dbctx.Context, id uuid.UUID, rating float64, totalReviews int64) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

// Counter columns are owned by aggregates and never accepted through UpdateFields.
var aggregateOwnedCourseColumns = map[string]bool{
	"rating":         true,
	"total_reviews":  true,
	"total_students": true,
}

func (r *courseRepo) Create(dbc dbctx.Context, rows []*catalog.Course) ([]*catalog.Course, error) {
	if len(rows) == 0 {
		return []*catalog.Course{}, nil
	}
	if err := dbc.DB(r.db).Omit("Lectures").Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *courseRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*catalog.Course, error) {
	var out []*catalog.Course
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Course, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *courseRepo) GetWithLectures(dbc dbctx.Context, id uuid.UUID) (*catalog.Course, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*catalog.Course
	err := dbc.DB(r.db).
		Preload("Lectures", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
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

func (r *courseRepo) ListPublished(dbc dbctx.Context, limit, offset int) ([]*catalog.Course, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*catalog.Course
	err := dbc.DB(r.db).
		Where("is_published = ?", true).
		Order("published_at DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseRepo) ListByInstructorID(dbc dbctx.Context, instructorID uuid.UUID) ([]*catalog.Course, error) {
	var out []*catalog.Course
	if instructorID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("instructor_id = ?", instructorID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Course, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*catalog.Course
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
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

func (r *courseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	clean := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		if aggregateOwnedCourseColumns[k] {
			r.log.Warn("dropping aggregate-owned column from course update", "column", k, "course_id", id)
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return nil
	}
	if _, ok := clean["updated_at"]; !ok {
		clean["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&catalog.Course{}).Where("id = ?", id).Updates(clean).Error
}

func (r *courseRepo) IncrementStudents(dbc dbctx.Context, id uuid.UUID, delta int64) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&catalog.Course{}).
		Where("id = ?", id).
		UpdateColumn("total_students", gorm.Expr("total_students + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *courseRepo) ApplyRating(dbc dbctx.Context, id uuid.UUID, rating int) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&catalog.Course{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"rating":        gorm.Expr("(rating * total_reviews + ?) / (total_reviews + 1)", float64(rating)),
			"total_reviews": gorm.Expr("total_reviews + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *courseRepo) SetRatingSummary(dbc dbctx.Context, id uuid.UUID, rating float64, totalReviews int64) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&catalog.Course{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"rating":        rating,
			"total_reviews": totalReviews,
		}).Error
}
