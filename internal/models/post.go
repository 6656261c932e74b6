package models

import "time"

// Post is a blog entry written by a user
type Post struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	AuthorID  int64     `json:"author_id" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"type:text;not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"date_time_created" gorm:"column:date_time_created;not null"`
	IsBlocked bool      `json:"is_blocked" gorm:"not null;default:false"`
	AutoReply bool      `json:"auto_reply" gorm:"not null;default:false"`
	// AutoReplyTime is kept for API compatibility; replies are always immediate.
	AutoReplyTime int `json:"auto_reply_time" gorm:"not null;default:0"`
}

// PostDraft is the user-supplied part of a post
type PostDraft struct {
	Title         string `json:"title" binding:"required"`
	Text          string `json:"text" binding:"required"`
	AutoReply     bool   `json:"auto_reply"`
	AutoReplyTime int    `json:"auto_reply_time" binding:"min=0"`
}
