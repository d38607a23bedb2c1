package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// RatingSummary is the recomputed mean over every stored review of a course.
type RatingSummary struct {
	Average float64
	Count   int64
}

type ReviewRepo interface {
	Create(dbc dbctx.Context, rows []*catalog.Review) ([]*catalog.Review, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Review, error)
	GetByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*catalog.Review, error)
	ListByCourseID(dbc dbctx.Context, courseID uuid.UUID, limit, offset int) ([]*catalog.Review, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByID(dbc dbctx.Context, id uuid.UUID) error
	Summarize(dbc dbctx.Context, courseID uuid.UUID) (RatingSummary, error)
}

type reviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewRepo(db *gorm.DB, baseLog *logger.Logger) ReviewRepo {
	return &reviewRepo{db: db, log: baseLog.With("repo", "ReviewRepo")}
}

func (r *reviewRepo) Create(dbc dbctx.Context, rows []*catalog.Review) ([]*catalog.Review, error) {
	if len(rows) == 0 {
		return []*catalog.Review{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reviewRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Review, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*catalog.Review
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *reviewRepo) GetByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) (*catalog.Review, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var out []*catalog.Review
	err := dbc.DB(r.db).
		Where("user_id = ? AND course_id = ?", userID, courseID).
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

func (r *reviewRepo) ListByCourseID(dbc dbctx.Context, courseID uuid.UUID, limit, offset int) ([]*catalog.Review, error) {
	var out []*catalog.Review
	if courseID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&catalog.Review{}).Where("id = ?", id).Updates(updates).Error
}

func (r *reviewRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&catalog.Review{}).Error
}

func (r *reviewRepo) Summarize(dbc dbctx.Context, courseID uuid.UUID) (RatingSummary, error) {
	var row struct {
		Average *float64
		Count   int64
	}
	err := dbc.DB(r.db).
		Model(&catalog.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("course_id = ?", courseID).
		Scan(&row).Error
	if err != nil {
		return RatingSummary{}, err
	}
	out := RatingSummary{Count: row.Count}
	if row.Average != nil {
		out.Average = *row.Average
	}
	return out, nil
}
