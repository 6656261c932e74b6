package storage

import (
	"context"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of Storage
type MockStorage struct {
	mock.Mock
}

var _ Storage = (*MockStorage)(nil)

func (m *MockStorage) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockStorage) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *MockStorage) AddPost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockStorage) UpdatePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockStorage) DeletePost(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorage) GetComments(ctx context.Context, filter CommentFilter) ([]models.Comment, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockStorage) GetCommentByID(ctx context.Context, id int64) (*models.Comment, error) {
	args := m.Called(ctx, id)
	comment, _ := args.Get(0).(*models.Comment)
	return comment, args.Error(1)
}

func (m *MockStorage) AddComment(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockStorage) UpdateComment(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockStorage) DeleteComment(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorage) CommentsDailyBreakdown(ctx context.Context, from, to time.Time) ([]models.DailyBreakdown, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]models.DailyBreakdown), args.Error(1)
}

func (m *MockStorage) AddUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockStorage) SubscribeToComments(ctx context.Context, postID int64) (<-chan *models.Comment, error) {
	args := m.Called(ctx, postID)
	ch, _ := args.Get(0).(chan *models.Comment)
	return ch, args.Error(1)
}

func (m *MockStorage) Close() error {
	return m.Called().Error(0)
}
