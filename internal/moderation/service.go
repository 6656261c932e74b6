// Package moderation runs the write path for posts and comments: every new or
// edited text is classified, blocked content is tagged rather than rejected,
// and comments on posts with auto_reply enabled may receive a generated answer
// from the post author.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/MosinFAM/moderated-blog/internal/models"
	"github.com/MosinFAM/moderated-blog/internal/profanity"
	"github.com/MosinFAM/moderated-blog/internal/replygen"
	"github.com/MosinFAM/moderated-blog/internal/storage"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrForbidden       = errors.New("not the author")
	ErrInvalidDraft    = errors.New("invalid draft")
)

type Options struct {
	// StrictReplyErrors returns generator failures to the caller. The user's
	// comment is already stored at that point.
	StrictReplyErrors bool
	Logger            *slog.Logger
}

type Service struct {
	store      storage.Storage
	classifier profanity.Classifier
	generator  replygen.Generator
	strict     bool
	logger     *slog.Logger
}

// NewService wires the workflow. A nil generator disables auto-replies.
func NewService(store storage.Storage, classifier profanity.Classifier, generator replygen.Generator, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		classifier: classifier,
		generator:  generator,
		strict:     opts.StrictReplyErrors,
		logger:     logger.With("component", "moderation"),
	}
}

func validatePost(draft models.PostDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if strings.TrimSpace(draft.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidDraft)
	}
	if draft.AutoReplyTime < 0 {
		return fmt.Errorf("%w: auto_reply_time cannot be negative", ErrInvalidDraft)
	}
	return nil
}

func validateComment(draft models.CommentDraft) error {
	if strings.TrimSpace(draft.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidDraft)
	}
	if utf8.RuneCountInString(draft.Text) > models.MaxCommentLength {
		return fmt.Errorf("%w: text is longer than %d characters", ErrInvalidDraft, models.MaxCommentLength)
	}
	if draft.PostID <= 0 {
		return fmt.Errorf("%w: post_id is required", ErrInvalidDraft)
	}
	return nil
}

func postText(draft models.PostDraft) string {
	return draft.Title + " " + draft.Text
}

// CreatePost classifies title and text together and stores the post, blocked or not
func (s *Service) CreatePost(ctx context.Context, authorID int64, draft models.PostDraft) (*models.Post, error) {
	if err := validatePost(draft); err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:      authorID,
		Title:         draft.Title,
		Text:          draft.Text,
		AutoReply:     draft.AutoReply,
		AutoReplyTime: draft.AutoReplyTime,
		IsBlocked:     s.classifier.Classify(ctx, postText(draft)),
	}
	if err := s.store.AddPost(ctx, post); err != nil {
		return nil, fmt.Errorf("saving post: %w", err)
	}

	postsCreated.WithLabelValues(blockedLabel(post.IsBlocked)).Inc()
	s.logger.Info("post created", "post_id", post.ID, "author_id", authorID, "blocked", post.IsBlocked)
	return post, nil
}

// UpdatePost replaces the author's post content and re-runs classification
func (s *Service) UpdatePost(ctx context.Context, userID, postID int64, draft models.PostDraft) (*models.Post, error) {
	if err := validatePost(draft); err != nil {
		return nil, err
	}
	post, err := s.ownPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	post.Title = draft.Title
	post.Text = draft.Text
	post.AutoReply = draft.AutoReply
	post.AutoReplyTime = draft.AutoReplyTime
	post.IsBlocked = s.classifier.Classify(ctx, postText(draft))
	if err := s.store.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("post updated", "post_id", post.ID, "blocked", post.IsBlocked)
	return post, nil
}

// DeletePost removes the author's post and its comments
func (s *Service) DeletePost(ctx context.Context, userID, postID int64) error {
	if _, err := s.ownPost(ctx, userID, postID); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("deleting post: %w", err)
	}
	s.logger.Info("post deleted", "post_id", postID)
	return nil
}

// CreateComment stores a classified comment and, when the post asks for it,
// an auto-reply from the post author. The returned comment is always the
// user's own.
func (s *Service) CreateComment(ctx context.Context, authorID int64, draft models.CommentDraft) (*models.Comment, error) {
	if err := validateComment(draft); err != nil {
		return nil, err
	}

	blocked := s.classifier.Classify(ctx, draft.Text)

	post, err := s.getPost(ctx, draft.PostID)
	if err != nil {
		return nil, err
	}

	// draft.IsBlocked is client input and never consulted
	comment := &models.Comment{
		AuthorID:  authorID,
		PostID:    post.ID,
		Text:      draft.Text,
		IsBlocked: blocked,
	}
	if err := s.store.AddComment(ctx, comment); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("saving comment: %w", err)
	}
	commentsCreated.WithLabelValues(blockedLabel(comment.IsBlocked)).Inc()
	s.logger.Info("comment created", "comment_id", comment.ID, "post_id", post.ID, "author_id", authorID, "blocked", comment.IsBlocked)

	if err := s.autoReply(ctx, post, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Service) autoReply(ctx context.Context, post *models.Post, comment *models.Comment) error {
	if !post.AutoReply || comment.IsBlocked || post.IsBlocked || s.generator == nil {
		if post.AutoReply {
			autoReplies.WithLabelValues("skipped").Inc()
		}
		return nil
	}

	text, err := s.generator.GenerateReply(ctx, comment.Text, post.Text)
	if err != nil {
		autoReplies.WithLabelValues("failed").Inc()
		if s.strict {
			return fmt.Errorf("generating auto-reply: %w", err)
		}
		s.logger.Warn("auto-reply generation failed, skipping", "post_id", post.ID, "comment_id", comment.ID, "err", err)
		return nil
	}

	// generated replies are stored as-is, without classification
	reply := &models.Comment{
		AuthorID:  post.AuthorID,
		PostID:    post.ID,
		Text:      text,
		IsBlocked: false,
	}
	if err := s.store.AddComment(ctx, reply); err != nil {
		autoReplies.WithLabelValues("failed").Inc()
		if s.strict {
			return fmt.Errorf("saving auto-reply: %w", err)
		}
		s.logger.Error("failed to save auto-reply", "post_id", post.ID, "comment_id", comment.ID, "err", err)
		return nil
	}

	autoReplies.WithLabelValues("created").Inc()
	s.logger.Info("auto-reply created", "comment_id", reply.ID, "reply_to", comment.ID, "post_id", post.ID)
	return nil
}

// UpdateComment replaces the author's comment text and re-runs
// classification. Edits never produce auto-replies.
func (s *Service) UpdateComment(ctx context.Context, userID, commentID int64, draft models.CommentDraft) (*models.Comment, error) {
	if err := validateComment(draft); err != nil {
		return nil, err
	}
	comment, err := s.ownComment(ctx, userID, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getPost(ctx, draft.PostID); err != nil {
		return nil, err
	}

	comment.Text = draft.Text
	comment.PostID = draft.PostID
	comment.IsBlocked = s.classifier.Classify(ctx, draft.Text)
	if err := s.store.UpdateComment(ctx, comment); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("updating comment: %w", err)
	}

	s.logger.Info("comment updated", "comment_id", comment.ID, "blocked", comment.IsBlocked)
	return comment, nil
}

// DeleteComment removes the author's comment
func (s *Service) DeleteComment(ctx context.Context, userID, commentID int64) error {
	if _, err := s.ownComment(ctx, userID, commentID); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("deleting comment: %w", err)
	}
	s.logger.Info("comment deleted", "comment_id", commentID)
	return nil
}

func (s *Service) getPost(ctx context.Context, postID int64) (*models.Post, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading post: %w", err)
	}
	return post, nil
}

func (s *Service) ownPost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *Service) ownComment(ctx context.Context, userID, commentID int64) (*models.Comment, error) {
	comment, err := s.store.GetCommentByID(ctx, commentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading comment: %w", err)
	}
	if comment.AuthorID != userID {
		return nil, ErrForbidden
	}
	return comment, nil
}
