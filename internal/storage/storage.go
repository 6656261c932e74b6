package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("duplicate email")
)

// CommentFilter narrows comment listings. A nil PostID lists comments of all posts.
type CommentFilter struct {
	PostID *int64
	Limit  int
	Offset int
}

// Storage is implemented by every backend (in-memory, PostgreSQL, GORM)
type Storage interface {
	PostStore
	CommentStore
	UserStore
	// SubscribeToComments streams comments added to a post until ctx is done
	SubscribeToComments(ctx context.Context, postID int64) (<-chan *models.Comment, error)
	Close() error
}

type PostStore interface {
	GetAllPosts(ctx context.Context) ([]models.Post, error)
	GetPostByID(ctx context.Context, id int64) (*models.Post, error)
	AddPost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id int64) error
}

type CommentStore interface {
	GetComments(ctx context.Context, filter CommentFilter) ([]models.Comment, error)
	GetCommentByID(ctx context.Context, id int64) (*models.Comment, error)
	AddComment(ctx context.Context, comment *models.Comment) error
	UpdateComment(ctx context.Context, comment *models.Comment) error
	DeleteComment(ctx context.Context, id int64) error
	// CommentsDailyBreakdown counts comments per UTC day for days in [from, to]
	CommentsDailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error)
}

type UserStore interface {
	AddUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

const (
	defaultCommentLimit = 100
	maxCommentLimit     = 1000
)

func (f CommentFilter) limit() int {
	if f.Limit <= 0 {
		return defaultCommentLimit
	}
	if f.Limit > maxCommentLimit {
		return maxCommentLimit
	}
	return f.Limit
}

func (f CommentFilter) offset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}

// dayBounds turns an inclusive [from, to] day range into a half-open UTC time range
func dayBounds(from, to time.Time) (time.Time, time.Time) {
	start := truncateDay(from)
	end := truncateDay(to).AddDate(0, 0, 1)
	return start, end
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dailyTally accumulates DailyBreakdown rows keyed by UTC day
type dailyTally map[string]*models.DailyBreakdown

func (t dailyTally) add(created time.Time, blocked bool) {
	day := created.UTC().Format(models.DayLayout)
	row, ok := t[day]
	if !ok {
		row = &models.DailyBreakdown{Day: day}
		t[day] = row
	}
	row.TotalComments++
	if blocked {
		row.BlockedComments++
	}
}

func (t dailyTally) rows() []models.DailyBreakdown {
	result := make([]models.DailyBreakdown, 0, len(t))
	for _, row := range t {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day < result[j].Day })
	return result
}
