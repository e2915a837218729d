package models

import "time"

// User is the profile record owned by the identity service. This backend
// only reads it; rows are created by that service (or the seeder).
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"-"`
	Image     string    `gorm:"size:500" json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Author is the public projection of a user attached to posts and comments.
type Author struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// TableName maps the projection onto the users table.
func (Author) TableName() string {
	return "users"
}
