package repository

import (
	"context"

	"classmate/internal/model"

	"gorm.io/gorm"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	FindPublicByID(ctx context.Context, id string) (*model.PublicProfile, error)
	FindPublicByFriendCode(ctx context.Context, code string) (*model.PublicProfile, error)
	FindPublicByIDs(ctx context.Context, ids []string) ([]*model.PublicProfile, error)
	FriendCodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, profile *model.Profile) error
}

type profileRepository struct {
	db    *gorm.DB
	cache Cache
}

func NewProfileRepository(db *gorm.DB, cache Cache) ProfileRepository {
	return &profileRepository{
		db:    db,
		cache: cache,
	}
}

func profileCacheKey(id string) string {
	return profileCachePrefix + id
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// FindByID returns the owner's view of a profile.
func (r *profileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	var cached model.Profile
	if err := r.cache.GetJSON(ctx, profileCacheKey(id), &cached); err == nil && cached.ID != "" {
		return &cached, nil
	}

	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}

	_ = r.cache.Set(ctx, profileCacheKey(id), &profile, cacheExpiration)
	return &profile, nil
}

func (r *profileRepository) FindPublicByID(ctx context.Context, id string) (*model.PublicProfile, error) {
	var profile model.PublicProfile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// FindPublicByFriendCode looks up the search view. The code is compared upper-cased.
func (r *profileRepository) FindPublicByFriendCode(ctx context.Context, code string) (*model.PublicProfile, error) {
	var profile model.PublicProfile
	err := r.db.WithContext(ctx).
		Where("upper(friend_code) = upper(?)", code).
		First(&profile).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

func (r *profileRepository) FindPublicByIDs(ctx context.Context, ids []string) ([]*model.PublicProfile, error) {
	if len(ids) == 0 {
		return []*model.PublicProfile{}, nil
	}

	var profiles []*model.PublicProfile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepository) FriendCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("upper(friend_code) = upper(?)", code).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update writes the editable fields. The friend code is never part of the update.
func (r *profileRepository) Update(ctx context.Context, profile *model.Profile) error {
	result := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]interface{}{
			"username":   profile.Username,
			"school":     profile.School,
			"student_id": profile.StudentID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	_ = r.cache.Delete(ctx, profileCacheKey(profile.ID))
	return nil
}
