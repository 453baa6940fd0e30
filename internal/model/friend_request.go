package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendRequestStatus string

// Friend request status constants
const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

func (s FriendRequestStatus) Terminal() bool {
	return s == FriendRequestAccepted || s == FriendRequestRejected
}

type FriendRequest struct {
	ID         string              `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FromUserID string              `gorm:"type:uuid;not null;index" json:"from_user_id"`
	ToUserID   string              `gorm:"type:uuid;not null;index" json:"to_user_id"`
	Status     FriendRequestStatus `gorm:"type:varchar(20);default:'pending';not null" json:"status"`
	CreatedAt  time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (r *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (FriendRequest) TableName() string {
	return "friend_requests"
}

type FriendRequestWithProfile struct {
	FriendRequest
	FromProfile *PublicProfile `json:"from_profile,omitempty"`
}
