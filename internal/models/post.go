// Package models contains data structures for the application's domain models.
package models

import "time"

// Post is a user-authored feed entry. LikesCount and CommentsCount are
// denormalized counters kept in step with the likes and comments tables.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Author        *Author   `gorm:"foreignKey:UserID;-:migration" json:"user,omitempty"`
	Title         string    `gorm:"size:300" json:"title,omitempty"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	Images        []string  `gorm:"type:text;serializer:json" json:"images"`
	LikesCount    int       `gorm:"not null;default:0;check:chk_posts_likes_count,likes_count >= 0" json:"likes_count"`
	CommentsCount int       `gorm:"not null;default:0;check:chk_posts_comments_count,comments_count >= 0" json:"comments_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// RecentComments is only populated by the feed listing.
	RecentComments []CommentPreview `gorm:"-" json:"recent_comments,omitempty"`
}

// FeedPage is a paginated list of posts.
type FeedPage = Page[*Post]
