package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"classmate/internal/apperror"
	"classmate/internal/calendar"
	"classmate/internal/model"
	"classmate/internal/repository"
	"classmate/internal/schedule"
	"classmate/internal/util"

	"go.uber.org/zap"
)

// CourseVisibility controls who may list another profile's courses.
type CourseVisibility int

const (
	// VisibilityFriends limits schedule viewing to the owner and confirmed friends.
	VisibilityFriends CourseVisibility = iota
	// VisibilityPublic lets any signed-in profile view any schedule.
	VisibilityPublic
)

func ParseCourseVisibility(s string) CourseVisibility {
	if strings.EqualFold(s, "public") {
		return VisibilityPublic
	}
	return VisibilityFriends
}

type CourseService interface {
	ListCourses(ctx context.Context, callerID, ownerID string) ([]*model.Course, error)
	PreviewConflicts(ctx context.Context, callerID string, input model.CourseInput, excludeID string) ([]*model.Course, error)
	CreateCourse(ctx context.Context, callerID string, input model.CourseInput, strict bool) (*model.CourseSaveResult, error)
	UpdateCourse(ctx context.Context, callerID, courseID string, input model.CourseInput, strict bool) (*model.CourseSaveResult, error)
	DeleteCourse(ctx context.Context, callerID, courseID string) error
	ExportCalendar(ctx context.Context, callerID string) (string, error)
	Periods() []schedule.Period
}

type courseService struct {
	courses     repository.CourseRepository
	friendships repository.FriendshipRepository
	periods     *schedule.PeriodTable
	visibility  CourseVisibility
	location    *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

func NewCourseService(
	courses repository.CourseRepository,
	friendships repository.FriendshipRepository,
	periods *schedule.PeriodTable,
	visibility CourseVisibility,
	location *time.Location,
	logger *zap.Logger,
) CourseService {
	if location == nil {
		location = time.UTC
	}
	return &courseService{
		courses:     courses,
		friendships: friendships,
		periods:     periods,
		visibility:  visibility,
		location:    location,
		now:         time.Now,
		logger:      logger,
	}
}

// CheckConflicts returns every course in existing, other than excludeID, whose
// slot overlaps candidate.
func CheckConflicts(candidate schedule.TimeSlot, existing []*model.Course, excludeID string) []*model.Course {
	conflicts := make([]*model.Course, 0)
	for _, c := range existing {
		if excludeID != "" && c.ID == excludeID {
			continue
		}
		if schedule.Overlaps(candidate, c.Slot()) {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// ListCourses returns ownerID's courses ordered by day then start period.
func (s *courseService) ListCourses(ctx context.Context, callerID, ownerID string) ([]*model.Course, error) {
	if ownerID == "" {
		ownerID = callerID
	}
	if err := s.authorizeView(ctx, callerID, ownerID); err != nil {
		return nil, err
	}

	courses, err := s.courses.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err, "list courses")
	}
	return courses, nil
}

func (s *courseService) PreviewConflicts(ctx context.Context, callerID string, input model.CourseInput, excludeID string) ([]*model.Course, error) {
	slot := input.Slot()
	if err := slot.Validate(s.periods.MaxPeriod()); err != nil {
		return nil, err
	}

	existing, err := s.courses.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, storeErr(err, "check conflicts")
	}
	return CheckConflicts(slot, existing, excludeID), nil
}

func (s *courseService) CreateCourse(ctx context.Context, callerID string, input model.CourseInput, strict bool) (*model.CourseSaveResult, error) {
	course, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	course.UserID = callerID

	conflicts, err := s.conflictsFor(ctx, course, "", strict)
	if err != nil {
		return nil, err
	}

	if err := s.courses.Create(ctx, course); err != nil {
		return nil, storeErr(err, "create course")
	}

	s.logger.Info("course created",
		zap.String("course_id", course.ID),
		zap.String("user_id", callerID),
		zap.Int("conflicts", len(conflicts)),
	)
	return &model.CourseSaveResult{Course: course, Conflicts: conflicts}, nil
}

// UpdateCourse replaces the editable fields of a course the caller owns.
func (s *courseService) UpdateCourse(ctx context.Context, callerID, courseID string, input model.CourseInput, strict bool) (*model.CourseSaveResult, error) {
	existing, err := s.ownedCourse(ctx, callerID, courseID, "update course")
	if err != nil {
		return nil, err
	}

	course, err := s.normalize(input)
	if err != nil {
		return nil, err
	}
	course.ID = existing.ID
	course.UserID = existing.UserID
	course.CreatedAt = existing.CreatedAt

	conflicts, err := s.conflictsFor(ctx, course, course.ID, strict)
	if err != nil {
		return nil, err
	}

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, lookupErr(err, "course not found", "update course")
	}

	s.logger.Info("course updated", zap.String("course_id", course.ID), zap.String("user_id", callerID))
	return &model.CourseSaveResult{Course: course, Conflicts: conflicts}, nil
}

func (s *courseService) DeleteCourse(ctx context.Context, callerID, courseID string) error {
	if _, err := s.ownedCourse(ctx, callerID, courseID, "delete course"); err != nil {
		return err
	}

	if err := s.courses.Delete(ctx, courseID, callerID); err != nil {
		return lookupErr(err, "course not found", "delete course")
	}

	s.logger.Info("course deleted", zap.String("course_id", courseID), zap.String("user_id", callerID))
	return nil
}

// ExportCalendar renders the caller's timetable as a weekly-recurring ICS feed.
func (s *courseService) ExportCalendar(ctx context.Context, callerID string) (string, error) {
	courses, err := s.courses.ListByOwner(ctx, callerID)
	if err != nil {
		return "", storeErr(err, "export calendar")
	}

	out, err := calendar.BuildTimetable(courses, s.periods, s.now().In(s.location))
	if err != nil {
		return "", apperror.Wrap(err, apperror.KindStore, "failed to export calendar")
	}
	return out, nil
}

func (s *courseService) Periods() []schedule.Period {
	return s.periods.All()
}

func (s *courseService) authorizeView(ctx context.Context, callerID, ownerID string) error {
	if callerID == ownerID || s.visibility == VisibilityPublic {
		return nil
	}

	friends, err := s.friendships.Exists(ctx, callerID, ownerID)
	if err != nil {
		return storeErr(err, "list courses")
	}
	if !friends {
		return apperror.Forbidden("you can only view schedules of your friends")
	}
	return nil
}

func (s *courseService) ownedCourse(ctx context.Context, callerID, courseID, op string) (*model.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupErr(err, "course not found", op)
	}
	if course.UserID != callerID {
		return nil, apperror.Forbidden("you can only modify your own courses")
	}
	return course, nil
}

func (s *courseService) conflictsFor(ctx context.Context, course *model.Course, excludeID string, strict bool) ([]*model.Course, error) {
	existing, err := s.courses.ListByOwner(ctx, course.UserID)
	if err != nil {
		return nil, storeErr(err, "check conflicts")
	}

	conflicts := CheckConflicts(course.Slot(), existing, excludeID)
	if strict && len(conflicts) > 0 {
		names := make([]string, 0, len(conflicts))
		for _, c := range conflicts {
			names = append(names, c.Name)
		}
		return nil, apperror.New(apperror.KindScheduleConflict,
			fmt.Sprintf("course overlaps with: %s", strings.Join(names, ", ")))
	}
	return conflicts, nil
}

// normalize validates input and returns a course without owner or id.
func (s *courseService) normalize(input model.CourseInput) (*model.Course, error) {
	name := util.SanitizeText(input.Name)
	if name == "" {
		return nil, apperror.Validation("course name is required")
	}

	slot := input.Slot()
	if err := slot.Validate(s.periods.MaxPeriod()); err != nil {
		return nil, err
	}

	color := input.Color
	if color == "" {
		color = model.CourseColorBlue
	}
	if !color.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown color %q", color))
	}

	return &model.Course{
		Name:        name,
		Teacher:     util.SanitizeOptional(input.Teacher),
		Classroom:   util.SanitizeOptional(input.Classroom),
		DayOfWeek:   slot.Day,
		StartPeriod: slot.StartPeriod,
		EndPeriod:   slot.EndPeriod,
		Color:       color,
	}, nil
}
