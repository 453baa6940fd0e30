package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Friendship is one directed edge. An established friendship is always stored
// as the pair (A, B) and (B, A).
type Friendship struct {
	ID        string    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_friendships_pair" json:"user_id"`
	FriendID  string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_friendships_pair" json:"friend_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate hook to generate UUID
func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name
func (Friendship) TableName() string {
	return "friendships"
}

type FriendWithProfile struct {
	ID       string         `json:"id"`
	FriendID string         `json:"friend_id"`
	Profile  *PublicProfile `json:"profile"`
}
