package repository

import (
	"context"

	"classmate/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FriendshipRepository interface {
	CreatePair(ctx context.Context, userID, friendID string) error
	Exists(ctx context.Context, userID, friendID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Friendship, error)
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	DeletePair(ctx context.Context, userID, friendID string) error
}

type friendshipRepository struct {
	db    *gorm.DB
	cache Cache
}

func NewFriendshipRepository(db *gorm.DB, cache Cache) FriendshipRepository {
	return &friendshipRepository{
		db:    db,
		cache: cache,
	}
}

func friendIDsCacheKey(userID string) string {
	return friendIDsCachePrefix + userID
}

// CreatePair inserts both directed edges in one statement. An edge that already
// exists is left alone.
func (r *friendshipRepository) CreatePair(ctx context.Context, userID, friendID string) error {
	edges := []*model.Friendship{
		{UserID: userID, FriendID: friendID},
		{UserID: friendID, FriendID: userID},
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "friend_id"}}, DoNothing: true}).
		Create(&edges).Error
	if err != nil {
		return err
	}

	r.invalidate(ctx, userID, friendID)
	return nil
}

func (r *friendshipRepository) Exists(ctx context.Context, userID, friendID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *friendshipRepository) ListByUser(ctx context.Context, userID string) ([]*model.Friendship, error) {
	var friendships []*model.Friendship
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&friendships).Error
	if err != nil {
		return nil, err
	}
	return friendships, nil
}

// FriendIDs returns the ids of userID's friends, cached.
func (r *friendshipRepository) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	var cached []string
	if err := r.cache.GetJSON(ctx, friendIDsCacheKey(userID), &cached); err == nil && cached != nil {
		return cached, nil
	}

	ids := []string{}
	err := r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, friendIDsCacheKey(userID), ids, cacheExpiration)
	return ids, nil
}

// DeletePair removes both directions. Missing edges are not an error.
func (r *friendshipRepository) DeletePair(ctx context.Context, userID, friendID string) error {
	err := r.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).
		Delete(&model.Friendship{}).Error
	if err != nil {
		return err
	}

	r.invalidate(ctx, userID, friendID)
	return nil
}

func (r *friendshipRepository) invalidate(ctx context.Context, userIDs ...string) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, friendIDsCacheKey(id))
	}
	_ = r.cache.Delete(ctx, keys...)
}
