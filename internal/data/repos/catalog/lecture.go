package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type LectureRepo interface {
	Create(dbc dbctx.Context, rows []*catalog.Lecture) ([]*catalog.Lecture, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Lecture, error)
	ListByCourseID(dbc dbctx.Context, courseID uuid.UUID) ([]*catalog.Lecture, error)
	MaxPosition(dbc dbctx.Context, courseID uuid.UUID) (int, error)
}

type lectureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLectureRepo(db *gorm.DB, baseLog *logger.Logger) LectureRepo {
	return &lectureRepo{db: db, log: baseLog.With("repo", "LectureRepo")}
}

func (r *lectureRepo) Create(dbc dbctx.Context, rows []*catalog.Lecture) ([]*catalog.Lecture, error) {
	if len(rows) == 0 {
		return []*catalog.Lecture{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lectureRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*catalog.Lecture, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*catalog.Lecture
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *lectureRepo) ListByCourseID(dbc dbctx.Context, courseID uuid.UUID) ([]*catalog.Lecture, error) {
	var out []*catalog.Lecture
	if courseID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("course_id = ?", courseID).
		Order("position ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lectureRepo) MaxPosition(dbc dbctx.Context, courseID uuid.UUID) (int, error) {
	if courseID == uuid.Nil {
		return 0, nil
	}
	var maxPos int
	err := dbc.DB(r.db).
		Model(&catalog.Lecture{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	return maxPos, nil
}
