package app

import (
	"time"

	"gorm.io/gorm"

	dataagg "github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type Aggregates struct {
	Ledger   domainagg.EnrollmentLedger
	Progress domainagg.ProgressTracker
	Payments domainagg.PaymentRecord
	Ratings  domainagg.RatingAggregator
}

func wireRepos(db *gorm.DB, log *logger.Logger) repos.Set {
	log.Info("Wiring repos...")
	return repos.NewSet(db, log)
}

func wireAggregates(db *gorm.DB, log *logger.Logger, cfg Config, metrics *observability.Metrics, set repos.Set) Aggregates {
	log.Info("Wiring aggregates...")
	base := dataagg.BaseDeps{
		DB:       db,
		Log:      log,
		Runner:   dataagg.NewGormTxRunner(db),
		Hooks:    dataagg.NewObservabilityHooks(metrics),
		CASGuard: dataagg.NewCASGuard(db),
	}
	ledger := dataagg.NewEnrollmentLedger(dataagg.EnrollmentLedgerDeps{
		Base:        base,
		Courses:     set.Course,
		Lectures:    set.Lecture,
		Enrollments: set.Enrollment,
		Progress:    set.LectureProgress,
	})
	return Aggregates{
		Ledger: ledger,
		Progress: dataagg.NewProgressTracker(dataagg.ProgressTrackerDeps{
			Base:        base,
			Lectures:    set.Lecture,
			Enrollments: set.Enrollment,
			Progress:    set.LectureProgress,
			Ledger:      ledger,
		}),
		Payments: dataagg.NewPaymentRecord(dataagg.PaymentRecordDeps{
			Base:     base,
			Courses:  set.Course,
			Payments: set.Payment,
			Rates:    cfg.Rates,
			ClaimTTL: claimTTL(cfg.ProcessorTimeout),
		}),
		Ratings: dataagg.NewRatingAggregator(dataagg.RatingAggregatorDeps{
			Base:        base,
			Courses:     set.Course,
			Reviews:     set.Review,
			Enrollments: set.Enrollment,
		}),
	}
}

// claimTTL keeps a payment claim alive well past the slowest gateway call.
func claimTTL(processorTimeout time.Duration) time.Duration {
	if ttl := 4 * processorTimeout; ttl > dataagg.DefaultClaimTTL {
		return ttl
	}
	return dataagg.DefaultClaimTTL
}
