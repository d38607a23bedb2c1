package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Catalog
		&catalog.Course{},
		&catalog.Lecture{},
		&catalog.Review{},

		// Learning
		&learning.Enrollment{},
		&learning.LectureProgress{},

		// Billing
		&billing.Payment{},
	)
}

// EnsureIndexes adds partial indexes gorm tags cannot express.
func EnsureIndexes(db *gorm.DB) error {
	// Expiry sweep scans only active rows with a deadline.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_enrollment_active_expires
		ON enrollment (expires_at)
		WHERE status = 'active' AND expires_at IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_enrollment_active_expires: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_payment_user_created
		ON payment (user_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_payment_user_created: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_course_published_at
		ON course (published_at DESC)
		WHERE is_published = true;
	`).Error; err != nil {
		return fmt.Errorf("create idx_course_published_at: %w", err)
	}
	return nil
}

// Migrate runs every schema step in order.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureIndexes(db)
}
