package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
)

// CourseOpts tweaks SeedCourse; zero values give a published 49.99 USD course.
type CourseOpts struct {
	Price       string
	IsFree      bool
	Unpublished bool
	AccessDays  int
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, opts CourseOpts) *catalog.Course {
	tb.Helper()
	price := opts.Price
	if price == "" {
		price = "49.99"
	}
	now := time.Now().UTC()
	c := &catalog.Course{
		ID:           uuid.New(),
		InstructorID: uuid.New(),
		Title:        "Course " + uuid.NewString()[:8],
		Price:        decimal.RequireFromString(price),
		Currency:     "USD",
		IsFree:       opts.IsFree,
		IsPublished:  !opts.Unpublished,
		AccessDays:   opts.AccessDays,
	}
	if c.IsPublished {
		c.PublishedAt = &now
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedLectures(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, durations ...int64) []*catalog.Lecture {
	tb.Helper()
	out := make([]*catalog.Lecture, 0, len(durations))
	for i, d := range durations {
		l := &catalog.Lecture{
			ID:              uuid.New(),
			CourseID:        courseID,
			Position:        i + 1,
			Title:           fmt.Sprintf("Lecture %d", i+1),
			DurationSeconds: d,
		}
		if err := tx.WithContext(ctx).Create(l).Error; err != nil {
			tb.Fatalf("seed lecture: %v", err)
		}
		out = append(out, l)
	}
	return out
}

func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, status string) *learning.Enrollment {
	tb.Helper()
	e := &learning.Enrollment{
		ID:         uuid.New(),
		UserID:     userID,
		CourseID:   courseID,
		Status:     status,
		AmountPaid: decimal.Zero,
		EnrolledAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

func SeedPayment(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, courseID *uuid.UUID, amount, status string) *billing.Payment {
	tb.Helper()
	amt := decimal.RequireFromString(amount)
	fee, tax, net := billing.DefaultRates().Breakdown(amt)
	p := &billing.Payment{
		ID:        uuid.New(),
		UserID:    userID,
		CourseID:  courseID,
		Status:    status,
		Currency:  "USD",
		Method:    "card",
		Amount:    amt,
		Fee:       fee,
		Tax:       tax,
		NetAmount: net,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed payment: %v", err)
	}
	return p
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
