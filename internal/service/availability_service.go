package service

import (
	"context"

	"classmate/internal/model"
	"classmate/internal/repository"
	"classmate/internal/schedule"

	"go.uber.org/zap"
)

type AvailabilityService interface {
	FindAvailableFriends(ctx context.Context, callerID string, slot schedule.TimeSlot) ([]*model.PublicProfile, error)
}

type availabilityService struct {
	friendships repository.FriendshipRepository
	courses     repository.CourseRepository
	profiles    repository.ProfileRepository
	periods     *schedule.PeriodTable
	logger      *zap.Logger
}

func NewAvailabilityService(
	friendships repository.FriendshipRepository,
	courses repository.CourseRepository,
	profiles repository.ProfileRepository,
	periods *schedule.PeriodTable,
	logger *zap.Logger,
) AvailabilityService {
	return &availabilityService{
		friendships: friendships,
		courses:     courses,
		profiles:    profiles,
		periods:     periods,
		logger:      logger,
	}
}

// FindAvailableFriends returns the caller's friends with no course overlapping
// slot. Order is unspecified.
func (s *availabilityService) FindAvailableFriends(ctx context.Context, callerID string, slot schedule.TimeSlot) ([]*model.PublicProfile, error) {
	if err := slot.Validate(s.periods.MaxPeriod()); err != nil {
		return nil, err
	}

	friendIDs, err := s.friendships.FriendIDs(ctx, callerID)
	if err != nil {
		return nil, storeErr(err, "find available friends")
	}
	if len(friendIDs) == 0 {
		return []*model.PublicProfile{}, nil
	}

	busy, err := s.courses.FindBusyOwners(ctx, friendIDs, slot)
	if err != nil {
		return nil, storeErr(err, "find available friends")
	}

	available := difference(friendIDs, busy)
	if len(available) == 0 {
		return []*model.PublicProfile{}, nil
	}

	profiles, err := s.profiles.FindPublicByIDs(ctx, available)
	if err != nil {
		return nil, storeErr(err, "find available friends")
	}

	s.logger.Debug("available friends resolved",
		zap.String("user_id", callerID),
		zap.Int("friends", len(friendIDs)),
		zap.Int("busy", len(busy)),
		zap.Int("available", len(profiles)),
	)
	return profiles, nil
}

// difference returns the members of all not in remove.
func difference(all, remove []string) []string {
	skip := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		skip[id] = struct{}{}
	}

	out := make([]string, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, id := range all {
		if _, ok := skip[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
