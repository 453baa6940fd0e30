package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TxRepositories are the repositories bound to one open transaction.
type TxRepositories struct {
	Users          UserRepository
	Profiles       ProfileRepository
	Friendships    FriendshipRepository
	FriendRequests FriendRequestRepository
}

// Transactor runs fn in one database transaction. Returning an error from fn
// rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repos TxRepositories) error) error
}

type Store struct {
	db     *gorm.DB
	cache  Cache
	logger *zap.Logger

	users          UserRepository
	profiles       ProfileRepository
	courses        CourseRepository
	friendships    FriendshipRepository
	friendRequests FriendRequestRepository
	notifications  NotificationRepository
}

func NewStore(db *gorm.DB, cache Cache, logger *zap.Logger) *Store {
	return &Store{
		db:             db,
		cache:          cache,
		logger:         logger,
		users:          NewUserRepository(db),
		profiles:       NewProfileRepository(db, cache),
		courses:        NewCourseRepository(db, logger),
		friendships:    NewFriendshipRepository(db, cache),
		friendRequests: NewFriendRequestRepository(db),
		notifications:  NewNotificationRepository(db),
	}
}

func (s *Store) Users() UserRepository                   { return s.users }
func (s *Store) Profiles() ProfileRepository             { return s.profiles }
func (s *Store) Courses() CourseRepository               { return s.courses }
func (s *Store) Friendships() FriendshipRepository       { return s.friendships }
func (s *Store) FriendRequests() FriendRequestRepository { return s.friendRequests }
func (s *Store) Notifications() NotificationRepository   { return s.notifications }

// WithinTransaction implements Transactor. Cache invalidations issued inside fn
// are applied only after commit.
func (s *Store) WithinTransaction(ctx context.Context, fn func(repos TxRepositories) error) error {
	deferred := &deferredCache{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(TxRepositories{
			Users:          NewUserRepository(tx),
			Profiles:       NewProfileRepository(tx, deferred),
			Friendships:    NewFriendshipRepository(tx, deferred),
			FriendRequests: NewFriendRequestRepository(tx),
		})
	})
	if err != nil {
		return err
	}

	deferred.flush(ctx, s.cache)
	return nil
}
