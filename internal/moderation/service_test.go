package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MosinFAM/moderated-blog/internal/models"
	"github.com/MosinFAM/moderated-blog/internal/profanity"
	"github.com/MosinFAM/moderated-blog/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, text string) bool {
	return m.Called(ctx, text).Bool(0)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateReply(ctx context.Context, commentText, postText string) (string, error) {
	args := m.Called(ctx, commentText, postText)
	return args.String(0), args.Error(1)
}

const postAuthor, commenter int64 = 10, 20

func newTestService(t *testing.T, gen *mockGenerator, opts Options) (*Service, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	var svc *Service
	if gen == nil {
		svc = NewService(store, profanity.NewWordlistClassifier(nil), nil, opts)
	} else {
		svc = NewService(store, profanity.NewWordlistClassifier(nil), gen, opts)
	}
	return svc, store
}

func commentsOn(t *testing.T, store storage.Storage, postID int64) []models.Comment {
	t.Helper()
	comments, err := store.GetComments(context.Background(), storage.CommentFilter{PostID: &postID})
	require.NoError(t, err)
	return comments
}

func TestCreatePost_Blocked(t *testing.T) {
	svc, store := newTestService(t, nil, Options{})

	post, err := svc.CreatePost(context.Background(), postAuthor, models.PostDraft{
		Title: "Test title", Text: "Fuck", AutoReply: false, AutoReplyTime: 1,
	})

	require.NoError(t, err)
	assert.True(t, post.IsBlocked)
	assert.Equal(t, 1, post.AutoReplyTime)
	stored, err := store.GetPostByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBlocked)
}

func TestCreatePost_ClassifiesTitleAndText(t *testing.T) {
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, "Clean title clean text").Return(false).Once()
	svc := NewService(storage.NewMemoryStorage(), classifier, nil, Options{})

	post, err := svc.CreatePost(context.Background(), postAuthor, models.PostDraft{Title: "Clean title", Text: "clean text"})

	require.NoError(t, err)
	assert.False(t, post.IsBlocked)
	assert.Equal(t, postAuthor, post.AuthorID)
	classifier.AssertExpectations(t)
}

func TestCreatePost_ProfaneTitle(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})

	post, err := svc.CreatePost(context.Background(), postAuthor, models.PostDraft{Title: "shit happens", Text: "a calm story"})

	require.NoError(t, err)
	assert.True(t, post.IsBlocked)
}

func TestCreatePost_Invalid(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})

	_, err := svc.CreatePost(context.Background(), postAuthor, models.PostDraft{Title: " ", Text: "x"})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = svc.CreatePost(context.Background(), postAuthor, models.PostDraft{Title: "t", Text: "x", AutoReplyTime: -1})
	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestCreateComment_AutoReply(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateReply", mock.Anything, "hello", "A clean post").Return("Thanks for reading!", nil).Once()
	svc, store := newTestService(t, gen, Options{})
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "A clean post", AutoReply: true})
	require.NoError(t, err)

	comment, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID})
	require.NoError(t, err)

	assert.Equal(t, commenter, comment.AuthorID)
	assert.Equal(t, "hello", comment.Text)
	comments := commentsOn(t, store, post.ID)
	require.Len(t, comments, 2)
	assert.Equal(t, comment.ID, comments[0].ID)
	assert.Equal(t, postAuthor, comments[1].AuthorID)
	assert.Equal(t, post.ID, comments[1].PostID)
	assert.Equal(t, "Thanks for reading!", comments[1].Text)
	assert.False(t, comments[1].IsBlocked)
	gen.AssertExpectations(t)
}

func TestCreateComment_ReplyIsNotClassified(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateReply", mock.Anything, mock.Anything, mock.Anything).Return("well fuck", nil)
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, "Hi A clean post").Return(false).Once()
	classifier.On("Classify", mock.Anything, "hello").Return(false).Once()
	store := storage.NewMemoryStorage()
	svc := NewService(store, classifier, gen, Options{})
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "A clean post", AutoReply: true})
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID})
	require.NoError(t, err)

	comments := commentsOn(t, store, post.ID)
	require.Len(t, comments, 2)
	assert.False(t, comments[1].IsBlocked)
	classifier.AssertExpectations(t)
	classifier.AssertNumberOfCalls(t, "Classify", 2)
}

func TestCreateComment_NoAutoReply(t *testing.T) {
	tests := []struct {
		name        string
		post        models.PostDraft
		commentText string
	}{
		{"auto reply disabled", models.PostDraft{Title: "Hi", Text: "clean", AutoReply: false}, "hello"},
		{"comment blocked", models.PostDraft{Title: "Hi", Text: "clean", AutoReply: true}, "fuck you"},
		{"post blocked", models.PostDraft{Title: "Hi", Text: "shit post", AutoReply: true}, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			svc, store := newTestService(t, gen, Options{})
			ctx := context.Background()

			post, err := svc.CreatePost(ctx, postAuthor, tt.post)
			require.NoError(t, err)
			_, err = svc.CreateComment(ctx, commenter, models.CommentDraft{Text: tt.commentText, PostID: post.ID})
			require.NoError(t, err)

			assert.Len(t, commentsOn(t, store, post.ID), 1)
			gen.AssertNotCalled(t, "GenerateReply", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateComment_NoGenerator(t *testing.T) {
	svc, store := newTestService(t, nil, Options{})
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean", AutoReply: true})
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID})
	require.NoError(t, err)

	assert.Len(t, commentsOn(t, store, post.ID), 1)
}

func TestCreateComment_Blocked(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})
	ctx := context.Background()
	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean"})
	require.NoError(t, err)

	blocked, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "Fuck", PostID: post.ID})
	require.NoError(t, err)
	assert.True(t, blocked.IsBlocked)

	clean, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "lovely", PostID: post.ID})
	require.NoError(t, err)
	assert.False(t, clean.IsBlocked)
}

// a client-supplied is_blocked value must not influence blocking or auto-replies
func TestCreateComment_IgnoresClientBlockedFlag(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("GenerateReply", mock.Anything, "hello", "clean").Return("hi!", nil).Once()
	svc, store := newTestService(t, gen, Options{})
	ctx := context.Background()
	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean", AutoReply: true})
	require.NoError(t, err)

	claimedBlocked := true
	clean, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID, IsBlocked: &claimedBlocked})
	require.NoError(t, err)
	assert.False(t, clean.IsBlocked)
	assert.Len(t, commentsOn(t, store, post.ID), 2)

	claimedClean := false
	profane, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "fuck", PostID: post.ID, IsBlocked: &claimedClean})
	require.NoError(t, err)
	assert.True(t, profane.IsBlocked)
	assert.Len(t, commentsOn(t, store, post.ID), 3)
	gen.AssertExpectations(t)
}

func TestCreateComment_GeneratorFailure(t *testing.T) {
	boom := errors.New("model unavailable")

	t.Run("default skips the reply", func(t *testing.T) {
		gen := &mockGenerator{}
		gen.On("GenerateReply", mock.Anything, mock.Anything, mock.Anything).Return("", boom)
		svc, store := newTestService(t, gen, Options{})
		ctx := context.Background()
		post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean", AutoReply: true})
		require.NoError(t, err)

		comment, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID})

		require.NoError(t, err)
		assert.NotZero(t, comment.ID)
		assert.Len(t, commentsOn(t, store, post.ID), 1)
	})

	t.Run("strict returns the error", func(t *testing.T) {
		gen := &mockGenerator{}
		gen.On("GenerateReply", mock.Anything, mock.Anything, mock.Anything).Return("", boom)
		svc, store := newTestService(t, gen, Options{StrictReplyErrors: true})
		ctx := context.Background()
		post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean", AutoReply: true})
		require.NoError(t, err)

		_, err = svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID})

		assert.ErrorIs(t, err, boom)
		assert.Len(t, commentsOn(t, store, post.ID), 1)
	})
}

func TestCreateComment_PostNotFound(t *testing.T) {
	store := &storage.MockStorage{}
	store.On("GetPostByID", mock.Anything, int64(404)).Return(nil, storage.ErrNotFound)
	svc := NewService(store, profanity.NewWordlistClassifier(nil), nil, Options{})

	_, err := svc.CreateComment(context.Background(), commenter, models.CommentDraft{Text: "hello", PostID: 404})

	assert.ErrorIs(t, err, ErrPostNotFound)
	store.AssertNotCalled(t, "AddComment", mock.Anything, mock.Anything)
}

func TestCreateComment_StorageError(t *testing.T) {
	dbErr := errors.New("connection reset")
	store := &storage.MockStorage{}
	store.On("GetPostByID", mock.Anything, int64(1)).Return(&models.Post{ID: 1, AuthorID: postAuthor}, nil)
	store.On("AddComment", mock.Anything, mock.Anything).Return(dbErr)
	svc := NewService(store, profanity.NewWordlistClassifier(nil), nil, Options{})

	_, err := svc.CreateComment(context.Background(), commenter, models.CommentDraft{Text: "hello", PostID: 1})

	assert.ErrorIs(t, err, dbErr)
}

func TestCreateComment_TooLong(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})

	_, err := svc.CreateComment(context.Background(), commenter, models.CommentDraft{
		Text:   strings.Repeat("ж", models.MaxCommentLength+1),
		PostID: 1,
	})

	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestUpdatePost(t *testing.T) {
	svc, _ := newTestService(t, nil, Options{})
	ctx := context.Background()
	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean"})
	require.NoError(t, err)

	_, err = svc.UpdatePost(ctx, commenter, post.ID, models.PostDraft{Title: "Hi", Text: "mine now"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdatePost(ctx, postAuthor, post.ID+100, models.PostDraft{Title: "Hi", Text: "x"})
	assert.ErrorIs(t, err, ErrPostNotFound)

	updated, err := svc.UpdatePost(ctx, postAuthor, post.ID, models.PostDraft{Title: "Hi", Text: "fuck it", AutoReply: true, AutoReplyTime: 5})
	require.NoError(t, err)
	assert.True(t, updated.IsBlocked)
	assert.True(t, updated.AutoReply)
	assert.Equal(t, 5, updated.AutoReplyTime)
	assert.Equal(t, post.CreatedAt, updated.CreatedAt)
}

func TestUpdateComment(t *testing.T) {
	gen := &mockGenerator{}
	svc, store := newTestService(t, gen, Options{})
	ctx := context.Background()
	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean"})
	require.NoError(t, err)
	comment, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID})
	require.NoError(t, err)

	_, err = svc.UpdateComment(ctx, postAuthor, comment.ID, models.CommentDraft{Text: "edited", PostID: post.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateComment(ctx, commenter, comment.ID+100, models.CommentDraft{Text: "edited", PostID: post.ID})
	assert.ErrorIs(t, err, ErrCommentNotFound)

	_, err = svc.UpdateComment(ctx, commenter, comment.ID, models.CommentDraft{Text: "edited", PostID: post.ID + 100})
	assert.ErrorIs(t, err, ErrPostNotFound)

	updated, err := svc.UpdateComment(ctx, commenter, comment.ID, models.CommentDraft{Text: "shit", PostID: post.ID})
	require.NoError(t, err)
	assert.True(t, updated.IsBlocked)
	assert.Len(t, commentsOn(t, store, post.ID), 1)
	gen.AssertNotCalled(t, "GenerateReply", mock.Anything, mock.Anything, mock.Anything)
}

func TestDelete_OwnerOnly(t *testing.T) {
	svc, store := newTestService(t, nil, Options{})
	ctx := context.Background()
	post, err := svc.CreatePost(ctx, postAuthor, models.PostDraft{Title: "Hi", Text: "clean"})
	require.NoError(t, err)
	comment, err := svc.CreateComment(ctx, commenter, models.CommentDraft{Text: "hello", PostID: post.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteComment(ctx, postAuthor, comment.ID), ErrForbidden)
	assert.NoError(t, svc.DeleteComment(ctx, commenter, comment.ID))
	assert.ErrorIs(t, svc.DeleteComment(ctx, commenter, comment.ID), ErrCommentNotFound)

	assert.ErrorIs(t, svc.DeletePost(ctx, commenter, post.ID), ErrForbidden)
	assert.NoError(t, svc.DeletePost(ctx, postAuthor, post.ID))
	_, err = store.GetPostByID(ctx, post.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
