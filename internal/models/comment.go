package models

import "time"

// MaxCommentLength caps comment text, in characters
const MaxCommentLength = 2000

// Comment is a reply attached to a post
type Comment struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	AuthorID  int64     `json:"author_id" gorm:"index;not null"`
	PostID    int64     `json:"post_id" gorm:"index;not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"date_time_created" gorm:"column:date_time_created;index;not null"`
	IsBlocked bool      `json:"is_blocked" gorm:"not null;default:false"`
}

// CommentDraft is the user-supplied part of a comment
type CommentDraft struct {
	Text   string `json:"text" binding:"required"`
	PostID int64  `json:"post_id" binding:"required"`
	// IsBlocked is accepted for compatibility with older clients and ignored:
	// blocking is decided by the classifier only.
	IsBlocked *bool `json:"is_blocked,omitempty"`
}

// DailyBreakdown aggregates comments created on one day
type DailyBreakdown struct {
	Day             string `json:"day"`
	TotalComments   int64  `json:"total_comments"`
	BlockedComments int64  `json:"blocked_comments"`
}

// DayLayout is the date format used for breakdown days and query params
const DayLayout = "2006-01-02"
