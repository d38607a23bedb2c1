package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	"github.com/yungbote/coursemarket-backend/internal/jobs"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/services"
)

type Services struct {
	// Auth
	Auth services.AuthService

	// Domain
	Catalog     services.CatalogService
	Enrollments services.EnrollmentService
	Progress    services.ProgressService
	Payments    services.PaymentService
	Reviews     services.ReviewService

	// Background
	Scheduler *jobs.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, set repos.Set, aggs Aggregates, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	fx := services.Effects{
		Events:   clients.Events,
		Notifier: clients.Notifier,
		Metrics:  metrics,
		Async:    cfg.AsyncSideEffects,
	}

	enrollments := services.NewEnrollmentService(log, aggs.Ledger, set.Course, set.Enrollment, set.Payment, fx)

	scheduler := jobs.NewScheduler(log)
	if err := scheduler.Register(cfg.ExpirySweepSpec, jobs.NewExpirySweep(enrollments, cfg.ExpirySweepTimeout)); err != nil {
		return Services{}, err
	}

	return Services{
		Auth:        services.NewAuthService(log, cfg.JWTSecretKey),
		Catalog:     services.NewCatalogService(db, log, set.Course, set.Lecture),
		Enrollments: enrollments,
		Progress:    services.NewProgressService(log, aggs.Progress, set.Course, set.Enrollment, set.LectureProgress, fx),
		Payments: services.NewPaymentService(
			log,
			aggs.Payments,
			clients.Processor,
			cfg.ProcessorTimeout,
			set.Course,
			set.Payment,
			fx,
		),
		Reviews:   services.NewReviewService(log, aggs.Ratings, set.Course, set.Review),
		Scheduler: scheduler,
	}, nil
}
