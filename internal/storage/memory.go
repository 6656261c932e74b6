package storage

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/models"
)

// MemoryStorage keeps everything in process memory
type MemoryStorage struct {
	mu       sync.RWMutex
	posts    map[int64]models.Post
	comments map[int64]models.Comment
	users    map[int64]models.User
	lastID   struct{ post, comment, user int64 }
	hub      *commentHub
	now      func() time.Time
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		posts:    make(map[int64]models.Post),
		comments: make(map[int64]models.Comment),
		users:    make(map[int64]models.User),
		hub:      newCommentHub(),
		now:      time.Now,
	}
}

// GetAllPosts returns all posts ordered by id
func (s *MemoryStorage) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		result = append(result, post)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetPostByID returns a post by id
func (s *MemoryStorage) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &post, nil
}

// AddPost stores a new post and fills in its id and creation time
func (s *MemoryStorage) AddPost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID.post++
	post.ID = s.lastID.post
	if post.CreatedAt.IsZero() {
		post.CreatedAt = s.now().UTC()
	}
	s.posts[post.ID] = *post
	slog.Debug("post added", "post_id", post.ID, "blocked", post.IsBlocked)
	return nil
}

// UpdatePost overwrites an existing post
func (s *MemoryStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; !exists {
		return ErrNotFound
	}
	s.posts[post.ID] = *post
	return nil
}

// DeletePost removes a post together with its comments
func (s *MemoryStorage) DeletePost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[id]; !exists {
		return ErrNotFound
	}
	delete(s.posts, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

// GetComments lists comments ordered by id, optionally for one post
func (s *MemoryStorage) GetComments(ctx context.Context, filter CommentFilter) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []models.Comment
	for _, c := range s.comments {
		if filter.PostID != nil && c.PostID != *filter.PostID {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := filter.offset()
	if start > len(all) {
		return []models.Comment{}, nil
	}
	end := start + filter.limit()
	if end > len(all) {
		end = len(all)
	}
	result := make([]models.Comment, end-start)
	copy(result, all[start:end])
	return result, nil
}

// GetCommentByID returns a comment by id
func (s *MemoryStorage) GetCommentByID(ctx context.Context, id int64) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.comments[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &c, nil
}

// AddComment stores a comment on an existing post and notifies subscribers
func (s *MemoryStorage) AddComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	if _, exists := s.posts[comment.PostID]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.lastID.comment++
	comment.ID = s.lastID.comment
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = s.now().UTC()
	}
	s.comments[comment.ID] = *comment
	s.mu.Unlock()

	slog.Debug("comment added", "comment_id", comment.ID, "post_id", comment.PostID, "blocked", comment.IsBlocked)
	s.hub.publish(*comment)
	return nil
}

// UpdateComment overwrites an existing comment
func (s *MemoryStorage) UpdateComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.comments[comment.ID]; !exists {
		return ErrNotFound
	}
	s.comments[comment.ID] = *comment
	return nil
}

// DeleteComment removes a comment
func (s *MemoryStorage) DeleteComment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.comments[id]; !exists {
		return ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

// CommentsDailyBreakdown counts total and blocked comments per day
func (s *MemoryStorage) CommentsDailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := dayBounds(from, to)
	tally := dailyTally{}
	for _, c := range s.comments {
		if c.CreatedAt.Before(start) || !c.CreatedAt.Before(end) {
			continue
		}
		tally.add(c.CreatedAt, c.IsBlocked)
	}
	return tally.rows(), nil
}

// AddUser stores a user; emails are unique case-insensitively
func (s *MemoryStorage) AddUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateEmail
		}
	}
	s.lastID.user++
	user.ID = s.lastID.user
	s.users[user.ID] = *user
	return nil
}

// GetUserByID returns a user by id
func (s *MemoryStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &u, nil
}

// GetUserByEmail returns a user by email
func (s *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// SubscribeToComments registers a subscriber for new comments on a post
func (s *MemoryStorage) SubscribeToComments(ctx context.Context, postID int64) (<-chan *models.Comment, error) {
	s.mu.RLock()
	_, exists := s.posts[postID]
	s.mu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}
	return s.hub.subscribe(ctx, postID), nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStorage) Close() error {
	return nil
}
