package model

import (
	"time"
)

// Profile is the owner's view of an account. Its ID is the user's ID.
type Profile struct {
	ID         string    `gorm:"type:uuid;primary_key" json:"id"`
	Username   *string   `gorm:"type:varchar(100)" json:"username"`
	Email      *string   `gorm:"type:varchar(255)" json:"email"`
	School     *string   `gorm:"type:varchar(255)" json:"school"`
	StudentID  *string   `gorm:"type:varchar(100)" json:"student_id"`
	FriendCode string    `gorm:"type:varchar(16);not null" json:"friend_code"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (Profile) TableName() string {
	return "profiles"
}

// PublicProfile is a row of the profile_search view. It has no email or student id.
type PublicProfile struct {
	ID         string  `gorm:"type:uuid;primary_key" json:"id"`
	Username   *string `json:"username"`
	FriendCode string  `json:"friend_code"`
	School     *string `json:"school"`
}

func (PublicProfile) TableName() string {
	return "profile_search"
}

// ProfilePatch holds the editable profile fields. Nil leaves a field unchanged;
// an empty string clears it.
type ProfilePatch struct {
	Username  *string `json:"username"`
	School    *string `json:"school"`
	StudentID *string `json:"student_id"`
}
