package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

const maxReviewComment = 4000

type RatingAggregatorDeps struct {
	Base BaseDeps

	Courses     repos.CourseRepo
	Reviews     repos.ReviewRepo
	Enrollments repos.EnrollmentRepo
}

type ratingAggregator struct {
	deps RatingAggregatorDeps
}

func NewRatingAggregator(deps RatingAggregatorDeps) domainagg.RatingAggregator {
	deps.Base = deps.Base.withDefaults()
	return &ratingAggregator{deps: deps}
}

func (a *ratingAggregator) Contract() domainagg.Contract {
	return domainagg.RatingAggregatorContract
}

func (a *ratingAggregator) ApplyRating(ctx context.Context, courseID uuid.UUID, rating int) (*catalog.Course, error) {
	const op = "Catalog.RatingAggregator.ApplyRating"
	if courseID == uuid.Nil {
		return nil, invalidArgument(op, "course_id is required")
	}
	if !catalog.ValidRating(rating) {
		return nil, invalidRating(op, rating)
	}
	if a.deps.Courses == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "course repo not configured", nil)
	}

	var out *catalog.Course
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.applyIncremental(dbc, op, courseID, rating); err != nil {
			return err
		}
		var err error
		out, err = a.deps.Courses.GetByID(dbc, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *ratingAggregator) applyIncremental(dbc dbctx.Context, op string, courseID uuid.UUID, rating int) error {
	ok, err := a.deps.Courses.ApplyRating(dbc, courseID, rating)
	if err != nil {
		return err
	}
	if !ok {
		return courseNotFound(op)
	}
	return nil
}

func (a *ratingAggregator) CreateReview(ctx context.Context, in domainagg.CreateReviewInput) (*catalog.Review, error) {
	const op = "Catalog.RatingAggregator.CreateReview"
	if in.UserID == uuid.Nil || in.CourseID == uuid.Nil {
		return nil, invalidArgument(op, "user_id and course_id are required")
	}
	if !catalog.ValidRating(in.Rating) {
		return nil, invalidRating(op, in.Rating)
	}
	comment := strings.TrimSpace(in.Comment)
	if len(comment) > maxReviewComment {
		return nil, invalidArgument(op, fmt.Sprintf("comment exceeds %d characters", maxReviewComment))
	}
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "rating aggregator repos not configured", nil)
	}

	var out *catalog.Review
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		e, err := a.deps.Enrollments.GetByUserAndCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		if e == nil {
			return notEnrolled(op)
		}
		existing, err := a.deps.Reviews.GetByUserAndCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyReviewed(op, nil)
		}

		row := &catalog.Review{
			ID:       uuid.New(),
			UserID:   in.UserID,
			CourseID: in.CourseID,
			Rating:   in.Rating,
			Comment:  comment,
		}
		if _, err := a.deps.Reviews.Create(dbc, []*catalog.Review{row}); err != nil {
			if isUniqueViolation(err) {
				return alreadyReviewed(op, err)
			}
			return err
		}
		if err := a.applyIncremental(dbc, op, in.CourseID, in.Rating); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *ratingAggregator) UpdateReview(ctx context.Context, in domainagg.UpdateReviewInput) (*catalog.Review, error) {
	const op = "Catalog.RatingAggregator.UpdateReview"
	if in.UserID == uuid.Nil || in.ReviewID == uuid.Nil {
		return nil, invalidArgument(op, "user_id and review_id are required")
	}
	if in.Rating != nil && !catalog.ValidRating(*in.Rating) {
		return nil, invalidRating(op, *in.Rating)
	}
	if in.Comment != nil && len(strings.TrimSpace(*in.Comment)) > maxReviewComment {
		return nil, invalidArgument(op, fmt.Sprintf("comment exceeds %d characters", maxReviewComment))
	}
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "rating aggregator repos not configured", nil)
	}

	var out *catalog.Review
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r, err := a.ownedReview(dbc, op, in.UserID, in.ReviewID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.Comment != nil {
			r.Comment = strings.TrimSpace(*in.Comment)
			updates["comment"] = r.Comment
		}
		ratingChanged := in.Rating != nil && *in.Rating != r.Rating
		if ratingChanged {
			r.Rating = *in.Rating
			updates["rating"] = r.Rating
		}
		if len(updates) == 0 {
			out = r
			return nil
		}
		if err := a.deps.Reviews.UpdateFields(dbc, r.ID, updates); err != nil {
			return err
		}
		if ratingChanged {
			if err := a.recompute(dbc, op, r.CourseID); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *ratingAggregator) DeleteReview(ctx context.Context, userID, reviewID uuid.UUID) error {
	const op = "Catalog.RatingAggregator.DeleteReview"
	if userID == uuid.Nil || reviewID == uuid.Nil {
		return invalidArgument(op, "user_id and review_id are required")
	}
	if !a.configured() {
		return domainagg.NewError(domainagg.CodeInternal, op, "rating aggregator repos not configured", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		r, err := a.ownedReview(dbc, op, userID, reviewID)
		if err != nil {
			return err
		}
		if err := a.deps.Reviews.DeleteByID(dbc, r.ID); err != nil {
			return err
		}
		return a.recompute(dbc, op, r.CourseID)
	})
}

// recompute rebuilds rating and total_reviews from the stored reviews while holding the course row.
func (a *ratingAggregator) recompute(dbc dbctx.Context, op string, courseID uuid.UUID) error {
	course, err := a.deps.Courses.LockByID(dbc, courseID)
	if err != nil {
		return err
	}
	if course == nil {
		return courseNotFound(op)
	}
	sum, err := a.deps.Reviews.Summarize(dbc, courseID)
	if err != nil {
		return err
	}
	return a.deps.Courses.SetRatingSummary(dbc, courseID, sum.Average, sum.Count)
}

// ownedReview hides other users' reviews behind not-found.
func (a *ratingAggregator) ownedReview(dbc dbctx.Context, op string, userID, reviewID uuid.UUID) (*catalog.Review, error) {
	r, err := a.deps.Reviews.GetByID(dbc, reviewID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.UserID != userID {
		return nil, domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonReviewNotFound, op, "review not found", nil)
	}
	return r, nil
}

func (a *ratingAggregator) configured() bool {
	return a.deps.Courses != nil && a.deps.Reviews != nil && a.deps.Enrollments != nil
}

func invalidRating(op string, rating int) error {
	return invalidArgument(op, fmt.Sprintf("rating must be between %d and %d, got %d", catalog.MinRating, catalog.MaxRating, rating))
}

func courseNotFound(op string) error {
	return domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonCourseNotFound, op, "course not found", nil)
}

func alreadyReviewed(op string, cause error) error {
	return domainagg.NewReasonError(domainagg.CodeConflict, domainagg.ReasonAlreadyReviewed, op, "user already reviewed this course", cause)
}
