package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

func TestCourseRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: db}
	repo := NewCourseRepo(db, testutil.Logger(t))

	c := testutil.SeedCourse(t, ctx, db, testutil.CourseOpts{Price: "89.99"})
	testutil.SeedLectures(t, ctx, db, c.ID, 300, 120)
	hidden := testutil.SeedCourse(t, ctx, db, testutil.CourseOpts{Unpublished: true})

	got, err := repo.GetWithLectures(dbc, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetWithLectures: err=%v got=%v", err, got)
	}
	if len(got.Lectures) != 2 || got.Lectures[0].Position != 1 {
		t.Fatalf("lectures: want 2 ordered rows, got=%+v", got.Lectures)
	}
	if got.Price.String() != "89.99" {
		t.Fatalf("price: want=89.99 got=%s", got.Price.String())
	}

	published, err := repo.ListPublished(dbc, 10, 0)
	if err != nil {
		t.Fatalf("ListPublished: %v", err)
	}
	for _, p := range published {
		if p.ID == hidden.ID {
			t.Fatalf("ListPublished returned unpublished course")
		}
	}
	if len(published) != 1 {
		t.Fatalf("ListPublished: want=1 got=%d", len(published))
	}

	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: err=%v row=%v", err, missing)
	}
}

func TestCourseRepoCountersAreAtomicAndGuarded(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: db}
	repo := NewCourseRepo(db, testutil.Logger(t))

	c := testutil.SeedCourse(t, ctx, db, testutil.CourseOpts{})

	for i := 0; i < 3; i++ {
		ok, err := repo.IncrementStudents(dbc, c.ID, 1)
		if err != nil || !ok {
			t.Fatalf("IncrementStudents: ok=%v err=%v", ok, err)
		}
	}
	if ok, err := repo.IncrementStudents(dbc, uuid.New(), 1); err != nil || ok {
		t.Fatalf("IncrementStudents unknown course: ok=%v err=%v", ok, err)
	}

	// aggregate-owned columns are dropped from instructor edits
	if err := repo.UpdateFields(dbc, c.ID, map[string]interface{}{
		"title":          "Renamed",
		"total_students": 999,
		"rating":         4.9,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	for _, r := range []int{5, 4, 3} {
		if ok, err := repo.ApplyRating(dbc, c.ID, r); err != nil || !ok {
			t.Fatalf("ApplyRating(%d): ok=%v err=%v", r, ok, err)
		}
	}

	got, err := repo.GetByID(dbc, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v", err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("title: want=Renamed got=%s", got.Title)
	}
	if got.TotalStudents != 3 {
		t.Fatalf("total_students: want=3 got=%d", got.TotalStudents)
	}
	if got.TotalReviews != 3 || got.Rating != 4 {
		t.Fatalf("rating: want=4/3 got=%v/%d", got.Rating, got.TotalReviews)
	}

	if err := repo.SetRatingSummary(dbc, c.ID, 2.5, 2); err != nil {
		t.Fatalf("SetRatingSummary: %v", err)
	}
	got, _ = repo.GetByID(dbc, c.ID)
	if got.Rating != 2.5 || got.TotalReviews != 2 {
		t.Fatalf("after SetRatingSummary: got=%v/%d", got.Rating, got.TotalReviews)
	}
}
