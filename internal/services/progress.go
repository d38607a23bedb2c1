package services

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type ProgressUpdate struct {
	Lecture    *learning.LectureProgress `json:"lecture"`
	Enrollment *learning.Enrollment      `json:"enrollment,omitempty"`
}

type CourseProgress struct {
	Enrollment *learning.Enrollment         `json:"enrollment"`
	Lectures   []*learning.LectureProgress `json:"lectures"`
}

type ProgressService interface {
	// RecordWatch stores the reported position and refreshes the enrollment summary.
	// On a partial update the returned ProgressUpdate still carries the stored lecture row.
	RecordWatch(ctx context.Context, userID, courseID, lectureID uuid.UUID, watchSeconds int64) (*ProgressUpdate, error)
	GetCourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*CourseProgress, error)
}

type progressService struct {
	log         *logger.Logger
	tracker     domainagg.ProgressTracker
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
	progress    repos.LectureProgressRepo
	effects     Effects
}

func NewProgressService(
	baseLog *logger.Logger,
	tracker domainagg.ProgressTracker,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
	progress repos.LectureProgressRepo,
	effects Effects,
) ProgressService {
	serviceLog := baseLog.With("service", "ProgressService")
	return &progressService{
		log:         serviceLog,
		tracker:     tracker,
		courses:     courses,
		enrollments: enrollments,
		progress:    progress,
		effects:     effects.withDefaults(serviceLog),
	}
}

func (s *progressService) RecordWatch(ctx context.Context, userID, courseID, lectureID uuid.UUID, watchSeconds int64) (*ProgressUpdate, error) {
	const op = "ProgressService.RecordWatch"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("course_id", courseID.String()),
		attribute.String("lecture_id", lectureID.String()),
		attribute.Int64("watch_seconds", watchSeconds),
	)

	row, courseDone, err := s.tracker.RecordWatch(ctx, domainagg.RecordWatchInput{
		UserID:       userID,
		CourseID:     courseID,
		LectureID:    lectureID,
		WatchSeconds: watchSeconds,
	})
	if err != nil {
		if row != nil {
			return &ProgressUpdate{Lecture: row}, err
		}
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	after, err := s.enrollments.GetByUserAndCourse(dbc, userID, courseID)
	if err != nil {
		// the write is committed; only the echo failed
		s.log.Warn("reload enrollment after watch failed", "user_id", userID, "course_id", courseID, "error", err)
		after = nil
	}
	if courseDone {
		done := after
		if done == nil {
			done = &learning.Enrollment{UserID: userID, CourseID: courseID, Status: learning.EnrollmentCompleted}
		}
		title := "your course"
		if c, err := s.courses.GetByID(dbc, courseID); err == nil && c != nil {
			title = c.Title
		}
		courseCompleted(ctx, s.log, s.effects, done, title)
	}
	return &ProgressUpdate{Lecture: row, Enrollment: after}, nil
}

func (s *progressService) GetCourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*CourseProgress, error) {
	const op = "ProgressService.GetCourseProgress"
	dbc := dbctx.Context{Ctx: ctx}
	e, err := s.enrollments.GetByUserAndCourse(dbc, userID, courseID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if e == nil {
		return nil, domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonNotEnrolled, op, "enrollment not found", nil)
	}
	rows, err := s.progress.ListByUserAndCourse(dbc, userID, courseID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if rows == nil {
		rows = []*learning.LectureProgress{}
	}
	return &CourseProgress{Enrollment: e, Lectures: rows}, nil
}
