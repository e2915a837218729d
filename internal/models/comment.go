package models

import "time"

// Comment is either a top-level comment (ParentCommentID nil) or a reply.
// PostID always names the thread root, replies included.
type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Author          *Author   `gorm:"foreignKey:UserID;-:migration" json:"user,omitempty"`
	PostID          uint      `gorm:"not null;index:idx_comments_post_created,priority:1" json:"post_id"`
	ParentCommentID *uint     `gorm:"index" json:"parent_comment_id"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	LikesCount      int       `gorm:"not null;default:0;check:chk_comments_likes_count,likes_count >= 0" json:"likes_count"`
	CreatedAt       time.Time `gorm:"index:idx_comments_post_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsTopLevel reports whether the comment hangs directly off its post.
func (c *Comment) IsTopLevel() bool {
	return c.ParentCommentID == nil
}

// CommentPreview is the trimmed comment shape embedded in feed entries.
type CommentPreview struct {
	Content    string `json:"content"`
	LikesCount int    `json:"likes_count"`
}

// CommentPage is a paginated list of comments.
type CommentPage = Page[*Comment]
