package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type LectureProgressRepo interface {
	Create(dbc dbctx.Context, rows []*learning.LectureProgress) ([]*learning.LectureProgress, error)

	Get(dbc dbctx.Context, userID, courseID, lectureID uuid.UUID) (*learning.LectureProgress, error)
	// ListByUserAndCourse returns rows ordered by the owning lecture's position.
	ListByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) ([]*learning.LectureProgress, error)

	Save(dbc dbctx.Context, row *learning.LectureProgress) error
}

type lectureProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLectureProgressRepo(db *gorm.DB, baseLog *logger.Logger) LectureProgressRepo {
	return &lectureProgressRepo{db: db, log: baseLog.With("repo", "LectureProgressRepo")}
}

func (r *lectureProgressRepo) Create(dbc dbctx.Context, rows []*learning.LectureProgress) ([]*learning.LectureProgress, error) {
	if len(rows) == 0 {
		return []*learning.LectureProgress{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lectureProgressRepo) Get(dbc dbctx.Context, userID, courseID, lectureID uuid.UUID) (*learning.LectureProgress, error) {
	if userID == uuid.Nil || courseID == uuid.Nil || lectureID == uuid.Nil {
		return nil, nil
	}
	var out []*learning.LectureProgress
	err := dbc.DB(r.db).
		Where("user_id = ? AND course_id = ? AND lecture_id = ?", userID, courseID, lectureID).
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

func (r *lectureProgressRepo) ListByUserAndCourse(dbc dbctx.Context, userID, courseID uuid.UUID) ([]*learning.LectureProgress, error) {
	var out []*learning.LectureProgress
	if userID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Select("lecture_progress.*").
		Joins("LEFT JOIN lecture ON lecture.id = lecture_progress.lecture_id").
		Where("lecture_progress.user_id = ? AND lecture_progress.course_id = ?", userID, courseID).
		Order("lecture.position ASC, lecture_progress.created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lectureProgressRepo) Save(dbc dbctx.Context, row *learning.LectureProgress) error {
	if row == nil || row.ID == uuid.Nil {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return dbc.DB(r.db).Save(row).Error
}
