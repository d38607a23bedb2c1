package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
)

var ProgressTrackerContract = Contract{
	Name:    "Learning.ProgressTracker",
	Owns:    "lecture_progress",
	Columns: nil,
	Notes:   "Per-lecture watch state; the enrollment summary is recomputed through the ledger after commit.",
}

// ProgressTracker owns lecture progress invariants.
//
// RecordWatch commits the progress row first. If the follow-up summary recompute fails, the
// stored row is returned together with a CodePartialUpdate error.
type ProgressTracker interface {
	Aggregate

	// courseCompleted reports that the follow-up recompute finished the course.
	RecordWatch(ctx context.Context, in RecordWatchInput) (p *learning.LectureProgress, courseCompleted bool, err error)
}

type RecordWatchInput struct {
	UserID       uuid.UUID
	CourseID     uuid.UUID
	LectureID    uuid.UUID
	WatchSeconds int64
	WatchedAt    time.Time
}
