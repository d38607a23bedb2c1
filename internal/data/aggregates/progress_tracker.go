package aggregates

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

type ProgressTrackerDeps struct {
	Base BaseDeps

	Lectures    repos.LectureRepo
	Enrollments repos.EnrollmentRepo
	Progress    repos.LectureProgressRepo

	// Ledger recomputes the enrollment summary after each committed watch update.
	Ledger domainagg.EnrollmentLedger
}

type progressTracker struct {
	deps ProgressTrackerDeps
}

func NewProgressTracker(deps ProgressTrackerDeps) domainagg.ProgressTracker {
	deps.Base = deps.Base.withDefaults()
	return &progressTracker{deps: deps}
}

func (a *progressTracker) Contract() domainagg.Contract {
	return domainagg.ProgressTrackerContract
}

func (a *progressTracker) RecordWatch(ctx context.Context, in domainagg.RecordWatchInput) (*learning.LectureProgress, bool, error) {
	const op = "Learning.ProgressTracker.RecordWatch"
	if in.UserID == uuid.Nil || in.CourseID == uuid.Nil || in.LectureID == uuid.Nil {
		return nil, false, invalidArgument(op, "user_id, course_id and lecture_id are required")
	}
	if in.WatchSeconds < 0 {
		return nil, false, invalidArgument(op, "watch_seconds must be >= 0")
	}
	if a.deps.Lectures == nil || a.deps.Enrollments == nil || a.deps.Progress == nil || a.deps.Ledger == nil {
		return nil, false, domainagg.NewError(domainagg.CodeInternal, op, "progress tracker deps not configured", nil)
	}

	watchedAt := in.WatchedAt.UTC()
	if in.WatchedAt.IsZero() {
		watchedAt = a.deps.Base.now()
	}

	var stored *learning.LectureProgress
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		e, err := a.deps.Enrollments.GetByUserAndCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		if e == nil || !e.AcceptsProgress() {
			return notEnrolled(op)
		}

		lecture, err := a.deps.Lectures.GetByID(dbc, in.LectureID)
		if err != nil {
			return err
		}
		if lecture == nil || lecture.CourseID != in.CourseID {
			return domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonLectureNotFound, op,
				fmt.Sprintf("lecture %s is not part of course %s", in.LectureID, in.CourseID), nil)
		}

		row, err := a.deps.Progress.Get(dbc, in.UserID, in.CourseID, in.LectureID)
		if err != nil {
			return err
		}
		if row == nil {
			row = &learning.LectureProgress{
				ID:            uuid.New(),
				UserID:        in.UserID,
				CourseID:      in.CourseID,
				LectureID:     in.LectureID,
				TotalDuration: lecture.DurationSeconds,
				Status:        learning.ProgressNotStarted,
			}
			row.ApplyWatch(in.WatchSeconds, watchedAt)
			if _, err := a.deps.Progress.Create(dbc, []*learning.LectureProgress{row}); err != nil {
				return err
			}
		} else {
			// lecture length may have been edited since the row was seeded
			row.TotalDuration = lecture.DurationSeconds
			row.ApplyWatch(in.WatchSeconds, watchedAt)
			if err := a.deps.Progress.Save(dbc, row); err != nil {
				return err
			}
		}
		stored = row
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	_, completed, err := a.deps.Ledger.RecomputeAggregate(ctx, in.UserID, in.CourseID)
	if err != nil {
		a.deps.Base.Log.Warn("enrollment recompute failed after progress commit",
			"user_id", in.UserID,
			"course_id", in.CourseID,
			"lecture_id", in.LectureID,
			"error", err,
		)
		return stored, false, domainagg.NewReasonError(domainagg.CodePartialUpdate, domainagg.ReasonAggregateRecomputeFailed, op,
			"lecture progress saved but enrollment summary was not updated", err)
	}
	return stored, completed, nil
}
