package app

import (
	"gorm.io/gorm"

	httpserver "github.com/yungbote/coursemarket-backend/internal/http"
	httpH "github.com/yungbote/coursemarket-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursemarket-backend/internal/http/middleware"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Course     *httpH.CourseHandler
	Enrollment *httpH.EnrollmentHandler
	Progress   *httpH.ProgressHandler
	Payment    *httpH.PaymentHandler
	Review     *httpH.ReviewHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Course:     httpH.NewCourseHandler(log, services.Catalog),
		Enrollment: httpH.NewEnrollmentHandler(log, services.Enrollments),
		Progress:   httpH.NewProgressHandler(log, services.Progress),
		Payment:    httpH.NewPaymentHandler(log, services.Payments),
		Review:     httpH.NewReviewHandler(log, services.Reviews),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *httpserver.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpserver.NewServer(httpserver.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       serviceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		RequestTimeout:    cfg.RequestTimeout,
		AuthMiddleware:    middleware.Auth,
		CourseHandler:     handlers.Course,
		EnrollmentHandler: handlers.Enrollment,
		ProgressHandler:   handlers.Progress,
		PaymentHandler:    handlers.Payment,
		ReviewHandler:     handlers.Review,
		HealthHandler:     handlers.Health,
	})
}
