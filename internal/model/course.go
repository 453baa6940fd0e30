package model

import (
	"time"

	"classmate/internal/schedule"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CourseColor string

const (
	CourseColorBlue   CourseColor = "blue"
	CourseColorPurple CourseColor = "purple"
	CourseColorGreen  CourseColor = "green"
	CourseColorOrange CourseColor = "orange"
	CourseColorPink   CourseColor = "pink"
	CourseColorCyan   CourseColor = "cyan"
)

func CourseColors() []CourseColor {
	return []CourseColor{
		CourseColorBlue,
		CourseColorPurple,
		CourseColorGreen,
		CourseColorOrange,
		CourseColorPink,
		CourseColorCyan,
	}
}

func (c CourseColor) Valid() bool {
	switch c {
	case CourseColorBlue, CourseColorPurple, CourseColorGreen, CourseColorOrange, CourseColorPink, CourseColorCyan:
		return true
	}
	return false
}

type Course struct {
	ID          string           `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID      string           `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string           `gorm:"type:varchar(255);not null" json:"name"`
	Teacher     *string          `gorm:"type:varchar(255)" json:"teacher"`
	Classroom   *string          `gorm:"type:varchar(255)" json:"classroom"`
	DayOfWeek   schedule.Weekday `gorm:"type:smallint;not null" json:"day_of_week"`
	StartPeriod int              `gorm:"type:smallint;not null" json:"start_period"`
	EndPeriod   int              `gorm:"type:smallint;not null" json:"end_period"`
	Color       CourseColor      `gorm:"type:varchar(20);not null;default:'blue'" json:"color"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) Slot() schedule.TimeSlot {
	return schedule.TimeSlot{
		Day:         c.DayOfWeek,
		StartPeriod: c.StartPeriod,
		EndPeriod:   c.EndPeriod,
	}
}

// CourseInput carries the editable fields of a course.
type CourseInput struct {
	Name        string           `json:"name" binding:"required"`
	Teacher     *string          `json:"teacher"`
	Classroom   *string          `json:"classroom"`
	DayOfWeek   schedule.Weekday `json:"day_of_week" binding:"required,weekday"`
	StartPeriod int              `json:"start_period" binding:"required,min=1"`
	EndPeriod   int              `json:"end_period" binding:"required,min=1"`
	Color       CourseColor      `json:"color" binding:"omitempty,coursecolor"`
}

func (in CourseInput) Slot() schedule.TimeSlot {
	return schedule.TimeSlot{
		Day:         in.DayOfWeek,
		StartPeriod: in.StartPeriod,
		EndPeriod:   in.EndPeriod,
	}
}

// CourseSaveResult is returned by create and update. Conflicts are advisory.
type CourseSaveResult struct {
	Course    *Course   `json:"course"`
	Conflicts []*Course `json:"conflicts"`
}
