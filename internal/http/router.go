package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursemarket-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursemarket-backend/internal/http/middleware"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string
	RequestTimeout time.Duration

	AuthMiddleware *httpMW.AuthMiddleware

	CourseHandler     *httpH.CourseHandler
	EnrollmentHandler *httpH.EnrollmentHandler
	ProgressHandler   *httpH.ProgressHandler
	PaymentHandler    *httpH.PaymentHandler
	ReviewHandler     *httpH.ReviewHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext(cfg.RequestTimeout))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Catalog
	if h := cfg.CourseHandler; h != nil {
		api.GET("/courses", h.ListCourses)
		api.GET("/courses/:id", h.GetCourse)

		authoring := api.Group("/")
		if cfg.AuthMiddleware != nil {
			authoring.Use(cfg.AuthMiddleware.RequireRole(services.RoleInstructor, services.RoleAdmin))
		}
		authoring.GET("/instructor/courses", h.ListMyCourses)
		authoring.POST("/courses", h.CreateCourse)
		authoring.PATCH("/courses/:id", h.UpdateCourse)
		authoring.POST("/courses/:id/lectures", h.AddLecture)
		authoring.POST("/courses/:id/publish", h.Publish)
		authoring.POST("/courses/:id/unpublish", h.Unpublish)
	}

	// Enrollment
	if h := cfg.EnrollmentHandler; h != nil {
		api.POST("/courses/:id/enroll", h.Enroll)
		api.POST("/courses/:id/complete", h.Complete)
		api.POST("/courses/:id/drop", h.Drop)
		api.GET("/courses/:id/enrollment", h.GetEnrollment)
		api.GET("/enrollments", h.ListEnrollments)
		api.POST("/payments/:id/enroll", h.EnrollWithPayment)

		admin := api.Group("/admin")
		if cfg.AuthMiddleware != nil {
			admin.Use(cfg.AuthMiddleware.RequireRole(services.RoleAdmin))
		}
		admin.POST("/enrollments", h.GrantEnrollment)
	}

	// Progress
	if h := cfg.ProgressHandler; h != nil {
		api.GET("/courses/:id/progress", h.GetCourseProgress)
		api.POST("/courses/:id/lectures/:lectureId/progress", h.RecordWatch)
	}

	// Payments
	if h := cfg.PaymentHandler; h != nil {
		api.POST("/payments", h.CreatePayment)
		api.GET("/payments", h.ListPayments)
		api.GET("/payments/:id", h.GetPayment)
		api.POST("/payments/:id/process", h.ProcessPayment)
		api.POST("/payments/:id/refund", h.RefundPayment)
		api.POST("/payments/:id/cancel", h.CancelPayment)
	}

	// Reviews
	if h := cfg.ReviewHandler; h != nil {
		api.GET("/courses/:id/reviews", h.ListReviews)
		api.POST("/courses/:id/reviews", h.CreateReview)
		api.PATCH("/reviews/:id", h.UpdateReview)
		api.DELETE("/reviews/:id", h.DeleteReview)
	}

	return r
}
