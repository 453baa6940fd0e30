package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"classmate/internal/apperror"
	"classmate/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "test_secret_key_minimum_32_chars"

func newAuthFixture() (*memStore, AuthService) {
	m := newMemStore()
	svc := NewAuthService(memUsers{m}, memProfiles{m}, m, testJWTSecret, time.Hour, zap.NewNop())
	return m, svc
}

func TestRegisterCreatesUserAndProfile(t *testing.T) {
	ctx := context.Background()
	m, svc := newAuthFixture()

	res, err := svc.Register(ctx, RegisterInput{Email: " Alice@School.edu ", Password: "secret1", Username: "alice"})
	require.NoError(t, err)
	require.NotNil(t, res.Profile)

	assert.Regexp(t, regexp.MustCompile(`^[A-Z2-7]{8}$`), res.Profile.FriendCode)
	assert.Equal(t, "alice@school.edu", *res.Profile.Email)
	assert.Equal(t, "alice", *res.Profile.Username)

	claims, err := util.ValidateToken(res.Token, testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, res.Profile.ID, claims.UserID)

	assert.Len(t, m.users, 1)
	assert.Len(t, m.profiles, 1)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthFixture()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "12345"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "", Password: "123456"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "long@b.c", Password: "123456", Username: strings.Repeat("x", 101)})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "123456"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "A@B.C", Password: "123456"})
	assert.Equal(t, apperror.KindAlreadyExists, apperror.KindOf(err))
}

func TestRegisterRollsBackUserWhenProfileFails(t *testing.T) {
	ctx := context.Background()
	m, svc := newAuthFixture()
	m.fail("profiles.create")

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "123456"})
	assert.Equal(t, apperror.KindStore, apperror.KindOf(err))
	assert.Empty(t, m.users)
	assert.Empty(t, m.profiles)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthFixture()

	reg, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "123456"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "A@b.c", "123456")
	require.NoError(t, err)
	assert.Equal(t, reg.Profile.ID, res.Profile.ID)

	_, err = svc.Login(ctx, "a@b.c", "wrong!")
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	_, err = svc.Login(ctx, "nobody@b.c", "123456")
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	me, err := svc.Me(ctx, reg.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.Profile.FriendCode, me.FriendCode)
}
