package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/models"

	"github.com/lib/pq"
)

const commentsChannel = "comments_channel"

// commentNotice is the pg_notify payload for a new comment
type commentNotice struct {
	ID     int64 `json:"id"`
	PostID int64 `json:"post_id"`
}

// PostgresStorage is the PostgreSQL backend. Schema is managed by goose migrations.
type PostgresStorage struct {
	DB         *sql.DB
	DataSource string
	logger     *slog.Logger
}

// NewPostgresStorage wraps an open connection; dataSource is reused for LISTEN connections
func NewPostgresStorage(db *sql.DB, dataSource string) *PostgresStorage {
	return &PostgresStorage{
		DB:         db,
		DataSource: dataSource,
		logger:     slog.Default().With("component", "postgres-storage"),
	}
}

const postColumns = `id, author_id, title, text, date_time_created, is_blocked, auto_reply, auto_reply_time`

const commentColumns = `id, author_id, post_id, text, date_time_created, is_blocked`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Text, &p.CreatedAt, &p.IsBlocked, &p.AutoReply, &p.AutoReplyTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.AuthorID, &c.PostID, &c.Text, &c.CreatedAt, &c.IsBlocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// GetAllPosts returns all posts ordered by id
func (s *PostgresStorage) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

// GetPostByID returns a post by id
func (s *PostgresStorage) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	return scanPost(row)
}

// AddPost inserts a post and fills in id and creation time
func (s *PostgresStorage) AddPost(ctx context.Context, post *models.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO posts (author_id, title, text, date_time_created, is_blocked, auto_reply, auto_reply_time)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		post.AuthorID, post.Title, post.Text, post.CreatedAt, post.IsBlocked, post.AutoReply, post.AutoReplyTime,
	).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// UpdatePost overwrites the mutable post fields
func (s *PostgresStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE posts SET title = $1, text = $2, is_blocked = $3, auto_reply = $4, auto_reply_time = $5
WHERE id = $6`,
		post.Title, post.Text, post.IsBlocked, post.AutoReply, post.AutoReplyTime, post.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return expectAffected(res)
}

// DeletePost removes a post; comments go with it through ON DELETE CASCADE
func (s *PostgresStorage) DeletePost(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return expectAffected(res)
}

// GetComments lists comments ordered by id, optionally for one post
func (s *PostgresStorage) GetComments(ctx context.Context, filter CommentFilter) ([]models.Comment, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter.PostID != nil {
		rows, err = s.DB.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE post_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
			*filter.PostID, filter.limit(), filter.offset())
	} else {
		rows, err = s.DB.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments ORDER BY id LIMIT $1 OFFSET $2`,
			filter.limit(), filter.offset())
	}
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// GetCommentByID returns a comment by id
func (s *PostgresStorage) GetCommentByID(ctx context.Context, id int64) (*models.Comment, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	return scanComment(row)
}

// AddComment inserts a comment and notifies LISTENers on comments_channel
func (s *PostgresStorage) AddComment(ctx context.Context, comment *models.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO comments (author_id, post_id, text, date_time_created, is_blocked)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		comment.AuthorID, comment.PostID, comment.Text, comment.CreatedAt, comment.IsBlocked,
	).Scan(&comment.ID)
	if err != nil {
		if isPQCode(err, "23503") {
			return ErrNotFound
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	// NOTIFY payloads are capped at 8000 bytes, so only ids are sent
	payload, err := json.Marshal(commentNotice{ID: comment.ID, PostID: comment.PostID})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, commentsChannel, string(payload)); err != nil {
		// the comment is committed; live subscribers just miss it
		s.logger.Warn("comment notification failed", "comment_id", comment.ID, "err", err)
	}
	return nil
}

// UpdateComment overwrites the mutable comment fields
func (s *PostgresStorage) UpdateComment(ctx context.Context, comment *models.Comment) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE comments SET text = $1, post_id = $2, is_blocked = $3 WHERE id = $4`,
		comment.Text, comment.PostID, comment.IsBlocked, comment.ID)
	if err != nil {
		if isPQCode(err, "23503") {
			return ErrNotFound
		}
		return fmt.Errorf("update comment: %w", err)
	}
	return expectAffected(res)
}

// DeleteComment removes a comment
func (s *PostgresStorage) DeleteComment(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return expectAffected(res)
}

// CommentsDailyBreakdown groups comments by UTC day
func (s *PostgresStorage) CommentsDailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error) {
	start, end := dayBounds(from, to)
	rows, err := s.DB.QueryContext(ctx, `
SELECT to_char(date_trunc('day', date_time_created AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
       COUNT(*) AS total_comments,
       COUNT(*) FILTER (WHERE is_blocked) AS blocked_comments
FROM comments
WHERE date_time_created >= $1 AND date_time_created < $2
GROUP BY day
ORDER BY day`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()

	result := []models.DailyBreakdown{}
	for rows.Next() {
		var row models.DailyBreakdown
		if err := rows.Scan(&row.Day, &row.TotalComments, &row.BlockedComments); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// AddUser inserts a user
func (s *PostgresStorage) AddUser(ctx context.Context, user *models.User) error {
	err := s.DB.QueryRowContext(ctx, `INSERT INTO users (email, hashed_password) VALUES ($1, $2) RETURNING id`,
		user.Email, user.HashedPassword).Scan(&user.ID)
	if err != nil {
		if isPQCode(err, "23505") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID returns a user by id
func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, email, hashed_password FROM users WHERE id = $1`, id)
}

// GetUserByEmail returns a user by email, case-insensitively
func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, email, hashed_password FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStorage) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// SubscribeToComments opens a dedicated LISTEN connection for the subscriber
func (s *PostgresStorage) SubscribeToComments(ctx context.Context, postID int64) (<-chan *models.Comment, error) {
	if _, err := s.GetPostByID(ctx, postID); err != nil {
		return nil, err
	}

	logger := s.logger.With("post_id", postID)
	listener := pq.NewListener(s.DataSource, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", "event", ev, "err", err)
		}
	})
	if err := listener.Listen(commentsChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", commentsChannel, err)
	}

	ch := make(chan *models.Comment, subscriberBuffer)
	go func() {
		defer close(ch)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(90 * time.Second):
				if err := listener.Ping(); err != nil {
					logger.Warn("postgres listener ping failed", "err", err)
					return
				}
			case n := <-listener.Notify:
				// nil after a reconnect
				if n == nil {
					continue
				}
				var notice commentNotice
				if err := json.Unmarshal([]byte(n.Extra), &notice); err != nil {
					logger.Warn("bad comment notification", "err", err)
					continue
				}
				if notice.PostID != postID {
					continue
				}
				c, err := s.GetCommentByID(ctx, notice.ID)
				if err != nil {
					// deleted in the meantime, or the subscriber is gone
					if !errors.Is(err, ErrNotFound) && ctx.Err() == nil {
						logger.Warn("loading notified comment failed", "comment_id", notice.ID, "err", err)
					}
					continue
				}
				select {
				case ch <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close closes the underlying connection pool
func (s *PostgresStorage) Close() error {
	return s.DB.Close()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
