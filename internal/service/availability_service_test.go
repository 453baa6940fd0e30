package service

import (
	"context"
	"testing"

	"classmate/internal/apperror"
	"classmate/internal/model"
	"classmate/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAvailabilityFixture() (*memStore, AvailabilityService) {
	m := newMemStore()
	for _, id := range []string{"me", "x", "y", "z", "stranger"} {
		m.addProfile(id, id, id+"CODE")
	}
	svc := NewAvailabilityService(memFriendships{m}, memCourses{m}, memProfiles{m}, schedule.DefaultPeriodTable(), zap.NewNop())
	return m, svc
}

func profileIDs(profiles []*model.PublicProfile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.ID)
	}
	return out
}

func TestFindAvailableFriends(t *testing.T) {
	ctx := context.Background()
	m, svc := newAvailabilityFixture()
	m.befriend("me", "x")
	m.befriend("me", "y")
	m.befriend("me", "z")
	m.addCourse("y", "Biology", schedule.Monday, 3, 3)
	m.addCourse("x", "History", schedule.Tuesday, 3, 3)
	m.addCourse("z", "Music", schedule.Monday, 4, 5)
	m.addCourse("stranger", "Art", schedule.Monday, 1, 12)

	got, err := svc.FindAvailableFriends(ctx, "me", schedule.TimeSlot{Day: schedule.Monday, StartPeriod: 3, EndPeriod: 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "z"}, profileIDs(got))

	got, err = svc.FindAvailableFriends(ctx, "me", schedule.TimeSlot{Day: schedule.Monday, StartPeriod: 3, EndPeriod: 4})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x"}, profileIDs(got))
}

func TestFindAvailableFriendsEmptyCases(t *testing.T) {
	ctx := context.Background()
	slot := schedule.TimeSlot{Day: schedule.Monday, StartPeriod: 3, EndPeriod: 3}

	t.Run("no friends short-circuits", func(t *testing.T) {
		m, svc := newAvailabilityFixture()
		m.fail("courses.busy")
		got, err := svc.FindAvailableFriends(ctx, "me", slot)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("everyone busy", func(t *testing.T) {
		m, svc := newAvailabilityFixture()
		m.befriend("me", "x")
		m.addCourse("x", "History", schedule.Monday, 1, 4)
		m.fail("profiles.find_by_ids")
		got, err := svc.FindAvailableFriends(ctx, "me", slot)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFindAvailableFriendsErrors(t *testing.T) {
	ctx := context.Background()
	m, svc := newAvailabilityFixture()
	m.befriend("me", "x")

	_, err := svc.FindAvailableFriends(ctx, "me", schedule.TimeSlot{Day: schedule.Monday, StartPeriod: 4, EndPeriod: 3})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	m.fail("courses.busy")
	_, err = svc.FindAvailableFriends(ctx, "me", schedule.TimeSlot{Day: schedule.Monday, StartPeriod: 1, EndPeriod: 1})
	assert.Equal(t, apperror.KindStore, apperror.KindOf(err))
}

func TestDifference(t *testing.T) {
	assert.ElementsMatch(t, []string{"a", "c"}, difference([]string{"a", "b", "c", "a"}, []string{"b"}))
	assert.Empty(t, difference([]string{"a"}, []string{"a"}))
	assert.Equal(t, []string{"a"}, difference([]string{"a"}, nil))
}
