package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	dataagg "github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	httpH "github.com/yungbote/coursemarket-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursemarket-backend/internal/http/middleware"
	"github.com/yungbote/coursemarket-backend/internal/http/response"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/payments"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

const testSecret = "router-test-secret"

type apiFixture struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	auth   services.AuthService
	events *events.Recorder
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)

	base := dataagg.BaseDeps{DB: db, Log: log, Runner: dataagg.NewGormTxRunner(db), CASGuard: dataagg.NewCASGuard(db)}
	ledger := dataagg.NewEnrollmentLedger(dataagg.EnrollmentLedgerDeps{
		Base: base, Courses: set.Course, Lectures: set.Lecture, Enrollments: set.Enrollment, Progress: set.LectureProgress,
	})
	tracker := dataagg.NewProgressTracker(dataagg.ProgressTrackerDeps{
		Base: base, Lectures: set.Lecture, Enrollments: set.Enrollment, Progress: set.LectureProgress, Ledger: ledger,
	})
	record := dataagg.NewPaymentRecord(dataagg.PaymentRecordDeps{Base: base, Courses: set.Course, Payments: set.Payment})
	ratings := dataagg.NewRatingAggregator(dataagg.RatingAggregatorDeps{
		Base: base, Courses: set.Course, Reviews: set.Review, Enrollments: set.Enrollment,
	})

	rec := &events.Recorder{}
	fx := services.Effects{Events: rec}
	auth := services.NewAuthService(log, testSecret)
	engine := NewRouter(RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, auth),
		CourseHandler:  httpH.NewCourseHandler(log, services.NewCatalogService(db, log, set.Course, set.Lecture)),
		EnrollmentHandler: httpH.NewEnrollmentHandler(log,
			services.NewEnrollmentService(log, ledger, set.Course, set.Enrollment, set.Payment, fx)),
		ProgressHandler: httpH.NewProgressHandler(log,
			services.NewProgressService(log, tracker, set.Course, set.Enrollment, set.LectureProgress, fx)),
		PaymentHandler: httpH.NewPaymentHandler(log,
			services.NewPaymentService(log, record, payments.NewMock(log, payments.MockConfig{}), time.Second, set.Course, set.Payment, fx)),
		ReviewHandler: httpH.NewReviewHandler(log, services.NewReviewService(log, ratings, set.Course, set.Review)),
		HealthHandler: httpH.NewHealthHandler(db),
	})
	return &apiFixture{t: t, db: db, engine: engine, auth: auth, events: rec}
}

func (f *apiFixture) token(userID uuid.UUID, role string) string {
	f.t.Helper()
	tok, err := f.auth.IssueToken(services.Identity{UserID: userID, Role: role}, time.Hour)
	if err != nil {
		f.t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

func (f *apiFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			f.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.APIError {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope %q: %v", rec.Body.String(), err)
	}
	return env.Error
}

func TestRouterRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(http.MethodGet, "/healthcheck", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: status=%d", rec.Code)
	}
	rec := f.do(http.MethodGet, "/api/enrollments", "", nil)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Reason != "missing_token" {
		t.Fatalf("missing token: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodGet, "/api/enrollments", "not-a-jwt", nil)
	if e := decodeError(t, rec); rec.Code != http.StatusUnauthorized || e.Code != "unauthorized" || e.Reason != "invalid_token" {
		t.Fatalf("bad token: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := f.do(http.MethodGet, "/api/enrollments", f.token(uuid.New(), services.RoleLearner), nil); rec.Code != http.StatusOK {
		t.Fatalf("valid token: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouterAuthoringNeedsInstructorRole(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]any{"title": "Distributed Go", "price": "19.99"}

	rec := f.do(http.MethodPost, "/api/courses", f.token(uuid.New(), services.RoleLearner), body)
	if rec.Code != http.StatusForbidden || decodeError(t, rec).Reason != "role_required" {
		t.Fatalf("learner create: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodPost, "/api/courses", f.token(uuid.New(), services.RoleInstructor), map[string]any{"price": "1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing title: status=%d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "title is required" {
		t.Fatalf("validation message: %q", msg)
	}

	rec = f.do(http.MethodPost, "/api/courses", f.token(uuid.New(), services.RoleInstructor), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("instructor create: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		Course catalog.Course `json:"course"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode course: %v", err)
	}
	if out.Course.Title != "Distributed Go" || out.Course.IsPublished {
		t.Fatalf("created course: %+v", out.Course)
	}
}

func TestRouterGrantEnrollmentNeedsAdmin(t *testing.T) {
	f := newAPIFixture(t)
	course := repotest.SeedCourse(t, t.Context(), f.db, repotest.CourseOpts{Price: "49.99"})
	learner := uuid.New()
	body := map[string]any{"user_id": learner.String(), "course_id": course.ID.String()}

	for _, role := range []string{services.RoleLearner, services.RoleInstructor} {
		rec := f.do(http.MethodPost, "/api/admin/enrollments", f.token(learner, role), body)
		if rec.Code != http.StatusForbidden || decodeError(t, rec).Reason != "role_required" {
			t.Fatalf("%s grant: status=%d body=%s", role, rec.Code, rec.Body.String())
		}
	}

	admin := f.token(uuid.New(), services.RoleAdmin)
	rec := f.do(http.MethodPost, "/api/admin/enrollments", admin, map[string]any{"course_id": course.ID.String()})
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Message != "user_id is required" {
		t.Fatalf("grant without user: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodPost, "/api/admin/enrollments", admin, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin grant: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodGet, "/api/courses/"+course.ID.String()+"/enrollment", f.token(learner, services.RoleLearner), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("granted enrollment not visible: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouterEnrollAndPayErrors(t *testing.T) {
	f := newAPIFixture(t)
	ctx := t.Context()
	course := repotest.SeedCourse(t, ctx, f.db, repotest.CourseOpts{Price: "49.99"})
	lectures := repotest.SeedLectures(t, ctx, f.db, course.ID, 60)
	user := uuid.New()
	tok := f.token(user, services.RoleLearner)

	rec := f.do(http.MethodPost, "/api/courses/"+course.ID.String()+"/enroll", tok, map[string]any{"amount_paid": "10.00"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("underpaid enroll: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if e := decodeError(t, rec); e.Code != "precondition_failed" || e.Reason != "insufficient_payment" {
		t.Fatalf("underpaid envelope: %+v", e)
	}

	rec = f.do(http.MethodPost, "/api/courses/"+course.ID.String()+"/enroll", tok, map[string]any{"amount_paid": "49.99"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodPost, "/api/courses/"+course.ID.String()+"/enroll", tok, map[string]any{"amount_paid": "49.99"})
	if rec.Code != http.StatusConflict || decodeError(t, rec).Reason != "already_enrolled" {
		t.Fatalf("double enroll: status=%d body=%s", rec.Code, rec.Body.String())
	}

	path := "/api/courses/" + course.ID.String() + "/lectures/" + lectures[0].ID.String() + "/progress"
	rec = f.do(http.MethodPost, path, tok, map[string]any{"watch_seconds": 60})
	if rec.Code != http.StatusOK {
		t.Fatalf("record watch: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodPost, path, tok, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("watch without seconds: status=%d", rec.Code)
	}

	rec = f.do(http.MethodPost, "/api/payments", tok, map[string]any{
		"course_id": course.ID.String(), "amount": "5.00", "method": "card",
	})
	if rec.Code != http.StatusUnprocessableEntity || decodeError(t, rec).Reason != "underpaid_amount" {
		t.Fatalf("underpaid payment: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/payments/"+uuid.NewString(), tok, nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Reason != "payment_not_found" {
		t.Fatalf("unknown payment: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodGet, "/api/payments/not-a-uuid", tok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", rec.Code)
	}
}

func TestRouterPaymentLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	course := repotest.SeedCourse(t, t.Context(), f.db, repotest.CourseOpts{Price: "20.00"})
	user := uuid.New()
	tok := f.token(user, services.RoleLearner)

	rec := f.do(http.MethodPost, "/api/payments", tok, map[string]any{
		"course_id": course.ID.String(), "amount": "20.00", "currency": "USD", "method": "card",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create payment: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Payment struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"payment"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	id := created.Payment.ID.String()

	rec = f.do(http.MethodPost, "/api/payments/"+id+"/process", tok, map[string]any{"token": "tok_visa"})
	if rec.Code != http.StatusOK {
		t.Fatalf("process: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodPost, "/api/payments/"+id+"/enroll", tok, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enroll with payment: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodPost, "/api/payments/"+id+"/refund", tok, map[string]any{"reason": "duplicate"})
	if rec.Code != http.StatusOK {
		t.Fatalf("refund: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(http.MethodPost, "/api/payments/"+id+"/refund", tok, nil)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Reason != "already_refunded" {
		t.Fatalf("second refund: status=%d body=%s", rec.Code, rec.Body.String())
	}

	other := f.token(uuid.New(), services.RoleLearner)
	rec = f.do(http.MethodGet, "/api/payments/"+id, other, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign payment visible: status=%d", rec.Code)
	}

	types := f.events.Types()
	want := []string{events.PaymentCompleted, events.EnrollmentCreated, events.PaymentRefunded}
	if len(types) != len(want) {
		t.Fatalf("events: want=%v got=%v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events: want=%v got=%v", want, types)
		}
	}
}
