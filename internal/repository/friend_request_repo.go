package repository

import (
	"context"

	"classmate/internal/apperror"
	"classmate/internal/model"

	"gorm.io/gorm"
)

type FriendRequestRepository interface {
	Create(ctx context.Context, req *model.FriendRequest) error
	FindByID(ctx context.Context, id string) (*model.FriendRequest, error)
	FindByPair(ctx context.Context, fromUserID, toUserID string) ([]*model.FriendRequest, error)
	ListPendingIncoming(ctx context.Context, toUserID string) ([]*model.FriendRequest, error)
	UpdateStatus(ctx context.Context, id string, status model.FriendRequestStatus) error
}

type friendRequestRepository struct {
	db *gorm.DB
}

func NewFriendRequestRepository(db *gorm.DB) FriendRequestRepository {
	return &friendRequestRepository{db: db}
}

func (r *friendRequestRepository) Create(ctx context.Context, req *model.FriendRequest) error {
	if req.Status == "" {
		req.Status = model.FriendRequestPending
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *friendRequestRepository) FindByID(ctx context.Context, id string) (*model.FriendRequest, error) {
	var req model.FriendRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// FindByPair returns every request for the ordered pair, newest first.
func (r *friendRequestRepository) FindByPair(ctx context.Context, fromUserID, toUserID string) ([]*model.FriendRequest, error) {
	var reqs []*model.FriendRequest
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", fromUserID, toUserID).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *friendRequestRepository) ListPendingIncoming(ctx context.Context, toUserID string) ([]*model.FriendRequest, error) {
	var reqs []*model.FriendRequest
	err := r.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", toUserID, model.FriendRequestPending).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// UpdateStatus moves a pending request to status. A request that is no longer
// pending yields INVALID_STATE.
func (r *friendRequestRepository) UpdateStatus(ctx context.Context, id string, status model.FriendRequestStatus) error {
	result := r.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", id, model.FriendRequestPending).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.New(apperror.KindInvalidState, "friend request has already been resolved")
	}
	return nil
}
