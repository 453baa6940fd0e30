package repository

import (
	"context"

	"classmate/internal/model"
	"classmate/internal/schedule"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	FindByID(ctx context.Context, id string) (*model.Course, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Course, error)
	Update(ctx context.Context, course *model.Course) error
	Delete(ctx context.Context, id, ownerID string) error
	FindBusyOwners(ctx context.Context, ownerIDs []string, slot schedule.TimeSlot) ([]string, error)
}

type courseRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewCourseRepository(db *gorm.DB, logger *zap.Logger) CourseRepository {
	return &courseRepository{
		db:     db,
		logger: logger,
	}
}

func (r *courseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) FindByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, notFound(err)
	}
	return &course, nil
}

// ListByOwner returns the owner's courses ordered by day then start period.
// Rows that do not form a valid slot are dropped.
func (r *courseRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Course, error) {
	var rows []*model.Course
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("day_of_week ASC").
		Order("start_period ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	courses := make([]*model.Course, 0, len(rows))
	for _, c := range rows {
		if !wellFormedCourse(c) {
			r.logger.Warn("dropping malformed course row",
				zap.String("course_id", c.ID),
				zap.String("user_id", c.UserID),
			)
			continue
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// Update replaces the editable fields. Ownership never changes.
func (r *courseRepository) Update(ctx context.Context, course *model.Course) error {
	result := r.db.WithContext(ctx).Model(&model.Course{}).
		Where("id = ? AND user_id = ?", course.ID, course.UserID).
		Updates(map[string]interface{}{
			"name":         course.Name,
			"teacher":      course.Teacher,
			"classroom":    course.Classroom,
			"day_of_week":  course.DayOfWeek,
			"start_period": course.StartPeriod,
			"end_period":   course.EndPeriod,
			"color":        course.Color,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *courseRepository) Delete(ctx context.Context, id, ownerID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Course{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindBusyOwners returns the distinct owners among ownerIDs with at least one
// course overlapping slot.
func (r *courseRepository) FindBusyOwners(ctx context.Context, ownerIDs []string, slot schedule.TimeSlot) ([]string, error) {
	if len(ownerIDs) == 0 {
		return []string{}, nil
	}

	var busy []string
	err := r.db.WithContext(ctx).Model(&model.Course{}).
		Distinct("user_id").
		Where("user_id IN ?", ownerIDs).
		Where("day_of_week = ?", slot.Day).
		Where("start_period <= ? AND end_period >= ?", slot.EndPeriod, slot.StartPeriod).
		Pluck("user_id", &busy).Error
	if err != nil {
		return nil, err
	}
	return busy, nil
}

func wellFormedCourse(c *model.Course) bool {
	if c == nil || c.ID == "" || c.UserID == "" || c.Name == "" {
		return false
	}
	if !c.DayOfWeek.Valid() {
		return false
	}
	return c.StartPeriod >= 1 && c.StartPeriod <= c.EndPeriod
}
