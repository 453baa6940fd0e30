package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"classmate/internal/apperror"
	"classmate/internal/model"
	"classmate/internal/repository"
	"classmate/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength       = 6
	maxFriendCodeAttempts   = 10
	invalidCredentialsError = "invalid email or password"
)

type RegisterInput struct {
	Email    string
	Password string
	Username string
}

type AuthResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   *model.Profile `json:"profile"`
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Me(ctx context.Context, callerID string) (*model.Profile, error)
}

type authService struct {
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	tx        repository.Transactor
	jwtSecret string
	jwtExpiry time.Duration
	logger    *zap.Logger
}

func NewAuthService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	tx repository.Transactor,
	jwtSecret string,
	jwtExpiry time.Duration,
	logger *zap.Logger,
) AuthService {
	return &authService{
		users:     users,
		profiles:  profiles,
		tx:        tx,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		logger:    logger,
	}
}

// Register creates the account and its profile in one transaction.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperror.Validation("email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperror.Validation("password must be at least 6 characters")
	}
	if err := checkLength("email", &email, maxEmailLength); err != nil {
		return nil, err
	}
	username := util.SanitizeOptional(&input.Username)
	if err := checkLength("username", username, maxUsernameLength); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperror.New(apperror.KindAlreadyExists, "email is already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err, "register")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindStore, "failed to register")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
	}
	var profile *model.Profile

	err = s.tx.WithinTransaction(ctx, func(repos repository.TxRepositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}

		code, err := uniqueFriendCode(ctx, repos.Profiles)
		if err != nil {
			return err
		}

		profile = &model.Profile{
			ID:         user.ID,
			Username:   username,
			Email:      &email,
			FriendCode: code,
		}
		return repos.Profiles.Create(ctx, profile)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperror.New(apperror.KindAlreadyExists, "email is already registered")
		}
		return nil, storeErr(err, "register")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user, profile)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.KindUnauthorized, invalidCredentialsError)
		}
		return nil, storeErr(err, "sign in")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.New(apperror.KindUnauthorized, invalidCredentialsError)
	}

	profile, err := s.profiles.FindByID(ctx, user.ID)
	if err != nil {
		return nil, lookupErr(err, "profile not found", "sign in")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.issue(user, profile)
}

func (s *authService) Me(ctx context.Context, callerID string) (*model.Profile, error) {
	if callerID == "" {
		return nil, apperror.New(apperror.KindUnauthorized, "not signed in")
	}
	profile, err := s.profiles.FindByID(ctx, callerID)
	if err != nil {
		return nil, lookupErr(err, "profile not found", "load profile")
	}
	return profile, nil
}

func (s *authService) issue(user *model.User, profile *model.Profile) (*AuthResult, error) {
	token, err := util.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindStore, "failed to issue session")
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.jwtExpiry),
		Profile:   profile,
	}, nil
}

// uniqueFriendCode draws codes until one is unused.
func uniqueFriendCode(ctx context.Context, profiles repository.ProfileRepository) (string, error) {
	for i := 0; i < maxFriendCodeAttempts; i++ {
		code, err := util.GenerateFriendCode()
		if err != nil {
			return "", err
		}
		exists, err := profiles.FriendCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique friend code")
}
