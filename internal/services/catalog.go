package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const (
	maxCourseTitle    = 200
	maxLectureTitle   = 200
	defaultCoursePage = 20
	maxCoursePage     = 100
)

// Actor is the caller a catalog operation runs on behalf of.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type CreateCourseRequest struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Currency    string
	IsFree      bool
	AccessDays  int
}

// UpdateCourseRequest carries only the fields to change.
type UpdateCourseRequest struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	Currency    *string
	IsFree      *bool
	AccessDays  *int
}

type AddLectureRequest struct {
	Title           string
	DurationSeconds int64
	IsPreview       bool
}

type CatalogService interface {
	CreateCourse(ctx context.Context, actor Actor, req CreateCourseRequest) (*catalog.Course, error)
	UpdateCourse(ctx context.Context, actor Actor, courseID uuid.UUID, req UpdateCourseRequest) (*catalog.Course, error)
	AddLecture(ctx context.Context, actor Actor, courseID uuid.UUID, req AddLectureRequest) (*catalog.Lecture, error)
	Publish(ctx context.Context, actor Actor, courseID uuid.UUID) (*catalog.Course, error)
	Unpublish(ctx context.Context, actor Actor, courseID uuid.UUID) (*catalog.Course, error)

	// GetCourse hides unpublished courses from everyone but their instructor and admins.
	GetCourse(ctx context.Context, actor Actor, courseID uuid.UUID) (*catalog.Course, error)
	ListPublished(ctx context.Context, limit, offset int) ([]*catalog.Course, error)
	ListMine(ctx context.Context, actor Actor) ([]*catalog.Course, error)
}

type catalogService struct {
	db       *gorm.DB
	log      *logger.Logger
	courses  repos.CourseRepo
	lectures repos.LectureRepo
}

func NewCatalogService(db *gorm.DB, baseLog *logger.Logger, courses repos.CourseRepo, lectures repos.LectureRepo) CatalogService {
	return &catalogService{
		db:       db,
		log:      baseLog.With("service", "CatalogService"),
		courses:  courses,
		lectures: lectures,
	}
}

func (s *catalogService) CreateCourse(ctx context.Context, actor Actor, req CreateCourseRequest) (*catalog.Course, error) {
	const op = "CatalogService.CreateCourse"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	if actor.UserID == uuid.Nil {
		return nil, invalidArgument(op, "instructor is required")
	}
	title := strings.TrimSpace(req.Title)
	if err := validateTitle(op, title, maxCourseTitle); err != nil {
		return nil, err
	}
	if err := validatePrice(op, req.Price); err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(op, req.Currency)
	if err != nil {
		return nil, err
	}
	if req.AccessDays < 0 {
		return nil, invalidArgument(op, "access_days must be >= 0")
	}

	row := &catalog.Course{
		ID:           uuid.New(),
		InstructorID: actor.UserID,
		Title:        title,
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price.Round(2),
		Currency:     currency,
		IsFree:       req.IsFree,
		AccessDays:   req.AccessDays,
	}
	if _, err := s.courses.Create(dbctx.Context{Ctx: ctx}, []*catalog.Course{row}); err != nil {
		return nil, storageError(op, err)
	}
	s.log.Info("course created", "course_id", row.ID, "instructor_id", actor.UserID)
	return row, nil
}

func (s *catalogService) UpdateCourse(ctx context.Context, actor Actor, courseID uuid.UUID, req UpdateCourseRequest) (*catalog.Course, error) {
	const op = "CatalogService.UpdateCourse"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID.String()))

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if err := validateTitle(op, title, maxCourseTitle); err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if err := validatePrice(op, *req.Price); err != nil {
			return nil, err
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.Currency != nil {
		currency, err := normalizeCurrency(op, *req.Currency)
		if err != nil {
			return nil, err
		}
		updates["currency"] = currency
	}
	if req.IsFree != nil {
		updates["is_free"] = *req.IsFree
	}
	if req.AccessDays != nil {
		if *req.AccessDays < 0 {
			return nil, invalidArgument(op, "access_days must be >= 0")
		}
		updates["access_days"] = *req.AccessDays
	}

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.owned(dbc, op, actor, courseID); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := s.courses.UpdateFields(dbc, courseID, updates); err != nil {
			return nil, storageError(op, err)
		}
	}
	return s.reload(dbc, op, courseID)
}

func (s *catalogService) AddLecture(ctx context.Context, actor Actor, courseID uuid.UUID, req AddLectureRequest) (*catalog.Lecture, error) {
	const op = "CatalogService.AddLecture"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	title := strings.TrimSpace(req.Title)
	if err := validateTitle(op, title, maxLectureTitle); err != nil {
		return nil, err
	}
	if req.DurationSeconds < 0 {
		return nil, invalidArgument(op, "duration_seconds must be >= 0")
	}

	var out *catalog.Lecture
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		c, err := s.courses.LockByID(dbc, courseID)
		if err != nil {
			return storageError(op, err)
		}
		if err := checkOwner(op, actor, c); err != nil {
			return err
		}
		maxPos, err := s.lectures.MaxPosition(dbc, courseID)
		if err != nil {
			return storageError(op, err)
		}
		row := &catalog.Lecture{
			ID:              uuid.New(),
			CourseID:        courseID,
			Position:        maxPos + 1,
			Title:           title,
			DurationSeconds: req.DurationSeconds,
			IsPreview:       req.IsPreview,
		}
		if _, err := s.lectures.Create(dbc, []*catalog.Lecture{row}); err != nil {
			return storageError(op, err)
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("lecture added", "course_id", courseID, "lecture_id", out.ID, "position", out.Position)
	return out, nil
}

func (s *catalogService) Publish(ctx context.Context, actor Actor, courseID uuid.UUID) (*catalog.Course, error) {
	return s.setPublished(ctx, "CatalogService.Publish", actor, courseID, true)
}

func (s *catalogService) Unpublish(ctx context.Context, actor Actor, courseID uuid.UUID) (*catalog.Course, error) {
	return s.setPublished(ctx, "CatalogService.Unpublish", actor, courseID, false)
}

func (s *catalogService) setPublished(ctx context.Context, op string, actor Actor, courseID uuid.UUID, published bool) (*catalog.Course, error) {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	c, err := s.owned(dbc, op, actor, courseID)
	if err != nil {
		return nil, err
	}
	if c.IsPublished == published {
		return c, nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{"is_published": published, "updated_at": now}
	if published {
		updates["published_at"] = now
	}
	if err := s.courses.UpdateFields(dbc, courseID, updates); err != nil {
		return nil, storageError(op, err)
	}
	s.log.Info("course visibility changed", "course_id", courseID, "published", published)
	return s.reload(dbc, op, courseID)
}

func (s *catalogService) GetCourse(ctx context.Context, actor Actor, courseID uuid.UUID) (*catalog.Course, error) {
	const op = "CatalogService.GetCourse"
	c, err := s.courses.GetWithLectures(dbctx.Context{Ctx: ctx}, courseID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if c == nil {
		return nil, courseNotFound(op)
	}
	if !c.IsPublished && c.InstructorID != actor.UserID && !actor.IsAdmin() {
		return nil, courseNotFound(op)
	}
	return c, nil
}

func (s *catalogService) ListPublished(ctx context.Context, limit, offset int) ([]*catalog.Course, error) {
	limit, offset = clampPage(limit, offset, defaultCoursePage, maxCoursePage)
	rows, err := s.courses.ListPublished(dbctx.Context{Ctx: ctx}, limit, offset)
	if err != nil {
		return nil, storageError("CatalogService.ListPublished", err)
	}
	if rows == nil {
		rows = []*catalog.Course{}
	}
	return rows, nil
}

func (s *catalogService) ListMine(ctx context.Context, actor Actor) ([]*catalog.Course, error) {
	rows, err := s.courses.ListByInstructorID(dbctx.Context{Ctx: ctx}, actor.UserID)
	if err != nil {
		return nil, storageError("CatalogService.ListMine", err)
	}
	if rows == nil {
		rows = []*catalog.Course{}
	}
	return rows, nil
}

func (s *catalogService) owned(dbc dbctx.Context, op string, actor Actor, courseID uuid.UUID) (*catalog.Course, error) {
	c, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if err := checkOwner(op, actor, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *catalogService) reload(dbc dbctx.Context, op string, courseID uuid.UUID) (*catalog.Course, error) {
	c, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if c == nil {
		return nil, courseNotFound(op)
	}
	return c, nil
}

func checkOwner(op string, actor Actor, c *catalog.Course) error {
	if c == nil {
		return courseNotFound(op)
	}
	if c.InstructorID != actor.UserID && !actor.IsAdmin() {
		return domainagg.NewReasonError(domainagg.CodeForbidden, domainagg.ReasonNotCourseOwner, op,
			"only the course instructor can change this course", nil)
	}
	return nil
}

func validateTitle(op, title string, max int) error {
	if title == "" {
		return invalidArgument(op, "title is required")
	}
	if len(title) > max {
		return invalidArgument(op, fmt.Sprintf("title exceeds %d characters", max))
	}
	return nil
}

func validatePrice(op string, price decimal.Decimal) error {
	if price.IsNegative() {
		return invalidArgument(op, "price must be >= 0")
	}
	return nil
}

func normalizeCurrency(op, currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD", nil
	}
	if len(currency) != 3 {
		return "", invalidArgument(op, "currency must be a 3-letter ISO code")
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", invalidArgument(op, "currency must be a 3-letter ISO code")
		}
	}
	return currency, nil
}

func invalidArgument(op, msg string) error {
	return domainagg.NewReasonError(domainagg.CodeValidation, domainagg.ReasonInvalidArgument, op, msg, nil)
}

func courseNotFound(op string) error {
	return domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonCourseNotFound, op, "course not found", nil)
}
