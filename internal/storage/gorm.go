package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/models"

	"gorm.io/gorm"
)

// GormStorage is the ORM backend, usable with any gorm dialector (sqlite, postgres)
type GormStorage struct {
	db  *gorm.DB
	hub *commentHub
}

// NewGormStorage wraps db and migrates the schema
func NewGormStorage(db *gorm.DB) (*GormStorage, error) {
	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &GormStorage{db: db, hub: newCommentHub()}, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateEmail
	}
	return err
}

// GetAllPosts returns all posts ordered by id
func (s *GormStorage) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := s.db.WithContext(ctx).Order("id").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	return posts, nil
}

// GetPostByID returns a post by id
func (s *GormStorage) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	post.CreatedAt = post.CreatedAt.UTC()
	return &post, nil
}

// AddPost inserts a post
func (s *GormStorage) AddPost(ctx context.Context, post *models.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// UpdatePost overwrites the mutable post fields
func (s *GormStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).
		Select("title", "text", "is_blocked", "auto_reply", "auto_reply_time").
		Updates(post)
	if res.Error != nil {
		return fmt.Errorf("update post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post and its comments in one transaction
func (s *GormStorage) DeletePost(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetComments lists comments ordered by id, optionally for one post
func (s *GormStorage) GetComments(ctx context.Context, filter CommentFilter) ([]models.Comment, error) {
	q := s.db.WithContext(ctx).Order("id").Limit(filter.limit()).Offset(filter.offset())
	if filter.PostID != nil {
		q = q.Where("post_id = ?", *filter.PostID)
	}
	comments := []models.Comment{}
	if err := q.Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	return comments, nil
}

// GetCommentByID returns a comment by id
func (s *GormStorage) GetCommentByID(ctx context.Context, id int64) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// AddComment inserts a comment on an existing post and notifies subscribers
func (s *GormStorage) AddComment(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	s.hub.publish(*comment)
	return nil
}

// UpdateComment overwrites the mutable comment fields
func (s *GormStorage) UpdateComment(ctx context.Context, comment *models.Comment) error {
	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", comment.ID).
		Select("text", "post_id", "is_blocked").
		Updates(comment)
	if res.Error != nil {
		return fmt.Errorf("update comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteComment removes a comment
func (s *GormStorage) DeleteComment(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete comment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CommentsDailyBreakdown groups comments by UTC day. Grouping happens in Go so
// the same query works on every dialect.
func (s *GormStorage) CommentsDailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error) {
	start, end := dayBounds(from, to)
	var rows []struct {
		CreatedAt time.Time `gorm:"column:date_time_created"`
		IsBlocked bool
	}
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("date_time_created", "is_blocked").
		Where("date_time_created >= ? AND date_time_created < ?", start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}

	tally := dailyTally{}
	for _, r := range rows {
		tally.add(r.CreatedAt, r.IsBlocked)
	}
	return tally.rows(), nil
}

// AddUser inserts a user
func (s *GormStorage) AddUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if err := translate(err); errors.Is(err, ErrDuplicateEmail) {
			return err
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID returns a user by id
func (s *GormStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetUserByEmail returns a user by email
func (s *GormStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// SubscribeToComments registers an in-process subscriber; only comments written
// through this instance are delivered
func (s *GormStorage) SubscribeToComments(ctx context.Context, postID int64) (<-chan *models.Comment, error) {
	if _, err := s.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, postID), nil
}

// Close closes the underlying connection pool
func (s *GormStorage) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
