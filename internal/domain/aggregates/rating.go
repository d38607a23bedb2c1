package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
)

var RatingAggregatorContract = Contract{
	Name:    "Catalog.RatingAggregator",
	Owns:    "review",
	Columns: []string{"course.rating", "course.total_reviews"},
	Notes:   "Rating is recomputed from all reviews under a course row lock.",
}

// RatingAggregator owns the course rating mean.
type RatingAggregator interface {
	Aggregate

	// ApplyRating folds one rating into the running mean with a single atomic UPDATE.
	ApplyRating(ctx context.Context, courseID uuid.UUID, rating int) (*catalog.Course, error)

	CreateReview(ctx context.Context, in CreateReviewInput) (*catalog.Review, error)
	UpdateReview(ctx context.Context, in UpdateReviewInput) (*catalog.Review, error)
	DeleteReview(ctx context.Context, userID, reviewID uuid.UUID) error
}

type CreateReviewInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	Rating   int
	Comment  string
}

type UpdateReviewInput struct {
	UserID   uuid.UUID
	ReviewID uuid.UUID
	Rating   *int
	Comment  *string
}
