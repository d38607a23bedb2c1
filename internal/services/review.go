package services

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const (
	defaultReviewPage = 20
	maxReviewPage     = 100
)

type ReviewService interface {
	Create(ctx context.Context, userID, courseID uuid.UUID, rating int, comment string) (*catalog.Review, error)
	Update(ctx context.Context, userID, reviewID uuid.UUID, rating *int, comment *string) (*catalog.Review, error)
	Delete(ctx context.Context, userID, reviewID uuid.UUID) error
	ListForCourse(ctx context.Context, courseID uuid.UUID, limit, offset int) ([]*catalog.Review, error)
}

type reviewService struct {
	log     *logger.Logger
	ratings domainagg.RatingAggregator
	courses repos.CourseRepo
	reviews repos.ReviewRepo
}

func NewReviewService(baseLog *logger.Logger, ratings domainagg.RatingAggregator, courses repos.CourseRepo, reviews repos.ReviewRepo) ReviewService {
	return &reviewService{
		log:     baseLog.With("service", "ReviewService"),
		ratings: ratings,
		courses: courses,
		reviews: reviews,
	}
}

func (s *reviewService) Create(ctx context.Context, userID, courseID uuid.UUID, rating int, comment string) (*catalog.Review, error) {
	ctx, span := tracer.Start(ctx, "ReviewService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID.String()), attribute.Int("rating", rating))

	r, err := s.ratings.CreateReview(ctx, domainagg.CreateReviewInput{
		UserID:   userID,
		CourseID: courseID,
		Rating:   rating,
		Comment:  comment,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("review created", "review_id", r.ID, "course_id", courseID, "rating", rating)
	return r, nil
}

func (s *reviewService) Update(ctx context.Context, userID, reviewID uuid.UUID, rating *int, comment *string) (*catalog.Review, error) {
	ctx, span := tracer.Start(ctx, "ReviewService.Update")
	defer span.End()

	return s.ratings.UpdateReview(ctx, domainagg.UpdateReviewInput{
		UserID:   userID,
		ReviewID: reviewID,
		Rating:   rating,
		Comment:  comment,
	})
}

func (s *reviewService) Delete(ctx context.Context, userID, reviewID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "ReviewService.Delete")
	defer span.End()

	if err := s.ratings.DeleteReview(ctx, userID, reviewID); err != nil {
		return err
	}
	s.log.Info("review deleted", "review_id", reviewID)
	return nil
}

func (s *reviewService) ListForCourse(ctx context.Context, courseID uuid.UUID, limit, offset int) ([]*catalog.Review, error) {
	const op = "ReviewService.ListForCourse"
	dbc := dbctx.Context{Ctx: ctx}
	c, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if c == nil || !c.IsPublished {
		return nil, domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonCourseNotFound, op, "course not found", nil)
	}
	limit, offset = clampPage(limit, offset, defaultReviewPage, maxReviewPage)
	rows, err := s.reviews.ListByCourseID(dbc, courseID, limit, offset)
	if err != nil {
		return nil, storageError(op, err)
	}
	if rows == nil {
		rows = []*catalog.Review{}
	}
	return rows, nil
}

func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
