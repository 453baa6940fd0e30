package service

import (
	"context"

	"classmate/internal/apperror"
	"classmate/internal/model"
	"classmate/internal/repository"
	"classmate/internal/util"

	"go.uber.org/zap"
)

type ProfileService interface {
	GetMyProfile(ctx context.Context, callerID string) (*model.Profile, error)
	UpdateMyProfile(ctx context.Context, callerID string, patch model.ProfilePatch) (*model.Profile, error)
	SearchByFriendCode(ctx context.Context, callerID, code string) (*model.PublicProfile, error)
	GetPublicProfile(ctx context.Context, id string) (*model.PublicProfile, error)
}

type profileService struct {
	profiles repository.ProfileRepository
	logger   *zap.Logger
}

func NewProfileService(profiles repository.ProfileRepository, logger *zap.Logger) ProfileService {
	return &profileService{
		profiles: profiles,
		logger:   logger,
	}
}

// GetMyProfile returns the owner's view, including email and student id.
func (s *profileService) GetMyProfile(ctx context.Context, callerID string) (*model.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, callerID)
	if err != nil {
		return nil, lookupErr(err, "profile not found", "load profile")
	}
	return profile, nil
}

// UpdateMyProfile applies the non-nil fields of patch. Values are trimmed and a
// blank value clears the field. The friend code cannot be changed.
func (s *profileService) UpdateMyProfile(ctx context.Context, callerID string, patch model.ProfilePatch) (*model.Profile, error) {
	username := util.SanitizeOptional(patch.Username)
	school := util.SanitizeOptional(patch.School)
	studentID := util.SanitizeOptional(patch.StudentID)
	if err := checkLength("username", username, maxUsernameLength); err != nil {
		return nil, err
	}
	if err := checkLength("school", school, maxSchoolLength); err != nil {
		return nil, err
	}
	if err := checkLength("student_id", studentID, maxStudentIDLength); err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByID(ctx, callerID)
	if err != nil {
		return nil, lookupErr(err, "profile not found", "update profile")
	}

	if patch.Username != nil {
		profile.Username = username
	}
	if patch.School != nil {
		profile.School = school
	}
	if patch.StudentID != nil {
		profile.StudentID = studentID
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, lookupErr(err, "profile not found", "update profile")
	}

	s.logger.Info("profile updated", zap.String("user_id", callerID))
	return profile, nil
}

// SearchByFriendCode finds a profile by code, case-insensitively. Only public
// fields are returned, even for the caller's own code.
func (s *profileService) SearchByFriendCode(ctx context.Context, callerID, code string) (*model.PublicProfile, error) {
	code = util.NormalizeFriendCode(code)
	if code == "" {
		return nil, apperror.Validation("friend code is required")
	}

	profile, err := s.profiles.FindPublicByFriendCode(ctx, code)
	if err != nil {
		return nil, lookupErr(err, "no user has that friend code", "search friend code")
	}
	return profile, nil
}

func (s *profileService) GetPublicProfile(ctx context.Context, id string) (*model.PublicProfile, error) {
	profile, err := s.profiles.FindPublicByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "user not found", "load profile")
	}
	return profile, nil
}
