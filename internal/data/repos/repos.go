package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/repos/billing"
	"github.com/yungbote/coursemarket-backend/internal/data/repos/catalog"
	"github.com/yungbote/coursemarket-backend/internal/data/repos/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type CourseRepo = catalog.CourseRepo
type LectureRepo = catalog.LectureRepo
type ReviewRepo = catalog.ReviewRepo
type RatingSummary = catalog.RatingSummary

type EnrollmentRepo = learning.EnrollmentRepo
type LectureProgressRepo = learning.LectureProgressRepo

type PaymentRepo = billing.PaymentRepo

// Set bundles every table repo bound to one *gorm.DB.
type Set struct {
	Course          CourseRepo
	Lecture         LectureRepo
	Review          ReviewRepo
	Enrollment      EnrollmentRepo
	LectureProgress LectureProgressRepo
	Payment         PaymentRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Course:          catalog.NewCourseRepo(db, log),
		Lecture:         catalog.NewLectureRepo(db, log),
		Review:          catalog.NewReviewRepo(db, log),
		Enrollment:      learning.NewEnrollmentRepo(db, log),
		LectureProgress: learning.NewLectureProgressRepo(db, log),
		Payment:         billing.NewPaymentRepo(db, log),
	}
}
