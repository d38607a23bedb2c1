package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Course is the purchasable catalog record.
// Rating, TotalReviews and TotalStudents are aggregate-owned and must only move through
// atomic SQL updates; instructor edits never write them.
type Course struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InstructorID uuid.UUID `gorm:"type:uuid;not null;index" json:"instructor_id"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`

	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0" json:"price"`
	Currency    string          `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	IsFree      bool            `gorm:"column:is_free;not null;default:false" json:"is_free"`
	IsPublished bool            `gorm:"column:is_published;not null;default:false;index" json:"is_published"`
	PublishedAt *time.Time      `gorm:"column:published_at" json:"published_at,omitempty"`

	// 0 means lifetime access.
	AccessDays int `gorm:"column:access_days;not null;default:0" json:"access_days"`

	Rating        float64 `gorm:"column:rating;not null;default:0" json:"rating"`
	TotalReviews  int64   `gorm:"column:total_reviews;not null;default:0" json:"total_reviews"`
	TotalStudents int64   `gorm:"column:total_students;not null;default:0" json:"total_students"`

	Lectures []*Lecture `gorm:"foreignKey:CourseID;references:ID" json:"lectures,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string { return "course" }

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// EffectivePrice is what a learner must pay; free courses always cost zero.
func (c *Course) EffectivePrice() decimal.Decimal {
	if c == nil || c.IsFree {
		return decimal.Zero
	}
	return c.Price
}
