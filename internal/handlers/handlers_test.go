package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MosinFAM/moderated-blog/internal/auth"
	"github.com/MosinFAM/moderated-blog/internal/models"
	"github.com/MosinFAM/moderated-blog/internal/moderation"
	"github.com/MosinFAM/moderated-blog/internal/profanity"
	"github.com/MosinFAM/moderated-blog/internal/replygen"
	"github.com/MosinFAM/moderated-blog/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const autoReplyText = "Thanks for your comment!"

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   storage.Storage
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T, store storage.Storage) *testAPI {
	t.Helper()
	return newTestAPIWithOrigins(t, store, nil)
}

func newTestAPIWithOrigins(t *testing.T, store storage.Storage, origins []string) *testAPI {
	t.Helper()
	gen := replygen.GeneratorFunc(func(ctx context.Context, comment, post string) (string, error) {
		return autoReplyText, nil
	})
	mod := moderation.NewService(store, profanity.NewWordlistClassifier(nil), gen, moderation.Options{})
	authSvc := auth.NewService(store, "test-secret", time.Hour)
	h := New(store, mod, authSvc, nil)
	return &testAPI{t: t, handler: h.Router(origins), store: store}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createUser(email, password string) map[string]any {
	a.t.Helper()
	w := a.do(http.MethodPost, "/register", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var out map[string]any
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *testAPI) token(email, password string) string {
	a.t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var out tokenResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(a.t, "bearer", out.TokenType)
	return out.AccessToken
}

func (a *testAPI) login(email string) string {
	a.t.Helper()
	a.createUser(email, "test")
	return a.token(email, "test")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var defaultPost = map[string]any{
	"title":           "Test title",
	"text":            "Test text",
	"auto_reply":      false,
	"auto_reply_time": 0,
}

func TestRegister(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())

	user := api.createUser("1@1.com", "test")
	assert.Equal(t, "1@1.com", user["email"])
	assert.NotContains(t, user, "hashed_password")

	stored, err := api.store.GetUserByEmail(context.Background(), "1@1.com")
	require.NoError(t, err)
	assert.NotEqual(t, "test", stored.HashedPassword)

	w := api.do(http.MethodPost, "/register", "", map[string]string{"email": "1@1.com", "password": "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email already registered", decode[errorResponse](t, w).Error)

	w = api.do(http.MethodPost, "/register", "", map[string]string{"email": "2@2.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToken(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	api.createUser("1@1.com", "test")

	assert.NotEmpty(t, api.token("1@1.com", "test"))

	form := url.Values{"username": {"1@1.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestPosts_RequireAuth(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())

	w := api.do(http.MethodGet, "/posts", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())

	w := api.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestCreateAndGetPost(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")

	w := api.do(http.MethodPost, "/posts", token, defaultPost)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Post](t, w)
	assert.Equal(t, "Test title", created.Title)
	assert.Equal(t, "Test text", created.Text)
	assert.False(t, created.AutoReply)
	assert.Equal(t, 0, created.AutoReplyTime)
	assert.False(t, created.IsBlocked)

	w = api.do(http.MethodGet, "/posts/1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[models.Post](t, w)
	assert.Equal(t, int64(1), first.ID)

	w = api.do(http.MethodGet, "/posts/1", token, nil)
	assert.Equal(t, first, decode[models.Post](t, w))

	w = api.do(http.MethodGet, "/posts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Post](t, w), 1)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/posts/99", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/posts/abc", token, nil).Code)
}

func TestCreatePost_Profanity(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")

	w := api.do(http.MethodPost, "/posts", token, map[string]any{
		"title":           "Test title",
		"text":            "Fuck",
		"auto_reply":      false,
		"auto_reply_time": 1,
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode[models.Post](t, w).IsBlocked)
}

func TestCreatePost_Invalid(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")

	w := api.do(http.MethodPost, "/posts", token, map[string]any{"text": "no title"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode[errorResponse](t, w).Error)
}

func TestUpdateAndDeletePost(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	owner := api.login("1@1.com")
	other := api.login("2@2.com")
	api.do(http.MethodPost, "/posts", owner, defaultPost)

	update := map[string]any{"title": "Updated Test title", "text": "Updated Test text", "auto_reply": true, "auto_reply_time": 0}

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPut, "/posts/1", other, update).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPut, "/posts/9", owner, update).Code)

	w := api.do(http.MethodPut, "/posts/1", owner, update)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Post](t, w)
	assert.Equal(t, "Updated Test title", updated.Title)
	assert.True(t, updated.AutoReply)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/posts/1", other, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/posts/1", owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/posts/1", owner, nil).Code)
}

func TestCreateComment_AutoReply(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	author := api.login("1@1.com")
	reader := api.login("2@2.com")

	w := api.do(http.MethodPost, "/posts", author, map[string]any{"title": "Test title", "text": "Test text", "auto_reply": true})
	require.Equal(t, http.StatusCreated, w.Code)
	post := decode[models.Post](t, w)

	w = api.do(http.MethodPost, "/comments", reader, map[string]any{"text": "hello", "post_id": post.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decode[models.Comment](t, w)
	assert.Equal(t, "hello", comment.Text)
	assert.False(t, comment.IsBlocked)

	w = api.do(http.MethodGet, fmt.Sprintf("/comments?post_id=%d", post.ID), reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	comments := decode[[]models.Comment](t, w)
	require.Len(t, comments, 2)
	assert.Equal(t, post.AuthorID, comments[1].AuthorID)
	assert.Equal(t, autoReplyText, comments[1].Text)
}

func TestCreateComment_Blocked(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")
	api.do(http.MethodPost, "/posts", token, map[string]any{"title": "t", "text": "x", "auto_reply": true})

	w := api.do(http.MethodPost, "/comments", token, map[string]any{"text": "Fuck", "post_id": 1, "is_blocked": false})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode[models.Comment](t, w).IsBlocked)
	comments := decode[[]models.Comment](t, api.do(http.MethodGet, "/comments?post_id=1", token, nil))
	assert.Len(t, comments, 1)
}

func TestCreateComment_UnknownPost(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")

	w := api.do(http.MethodPost, "/comments", token, map[string]any{"text": "hello", "post_id": 42})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "post not found", decode[errorResponse](t, w).Error)
}

func TestCommentCRUD(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	author := api.login("1@1.com")
	other := api.login("2@2.com")
	api.do(http.MethodPost, "/posts", author, defaultPost)
	api.do(http.MethodPost, "/comments", author, map[string]any{"text": "Test comment", "post_id": 1})

	w := api.do(http.MethodGet, "/comments/1", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Test comment", decode[models.Comment](t, w).Text)

	edit := map[string]any{"text": "Updated comment", "post_id": 1}
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPut, "/comments/1", other, edit).Code)
	w = api.do(http.MethodPut, "/comments/1", author, edit)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Updated comment", decode[models.Comment](t, w).Text)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/comments/1", other, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/comments/1", author, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/comments/1", author, nil).Code)
}

func TestListComments_BadQuery(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/comments?post_id=x", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/comments?limit=-1", token, nil).Code)

	w := api.do(http.MethodGet, "/comments", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCommentsDailyBreakdown(t *testing.T) {
	store := storage.NewMemoryStorage()
	api := newTestAPI(t, store)
	token := api.login("1@1.com")
	ctx := context.Background()
	post := &models.Post{AuthorID: 1, Title: "t", Text: "x"}
	require.NoError(t, store.AddPost(ctx, post))

	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, blocked := range []bool{false, true, false} {
		require.NoError(t, store.AddComment(ctx, &models.Comment{PostID: post.ID, Text: "c", IsBlocked: blocked, CreatedAt: day}))
	}

	w := api.do(http.MethodGet, "/comments-daily-breakdown?date_from=2024-02-28&date_to=2024-03-02", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.DailyBreakdown{{Day: "2024-03-01", TotalComments: 3, BlockedComments: 1}}, decode[[]models.DailyBreakdown](t, w))

	w = api.do(http.MethodGet, "/comments-daily-breakdown?date_from=2024-03-01&date_to=2024-03-01", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.DailyBreakdown](t, w), 1)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/comments-daily-breakdown?date_from=03/01/2024&date_to=2024-03-02", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/comments-daily-breakdown?date_from=2024-03-02&date_to=2024-03-01", token, nil).Code)
}

// authedMock returns a MockStorage that authenticates one user
func authedMock(t *testing.T) (*storage.MockStorage, string) {
	t.Helper()
	store := &storage.MockStorage{}
	user := &models.User{ID: 7, Email: "m@m.com"}
	authSvc := auth.NewService(store, "test-secret", time.Hour)
	token, err := authSvc.IssueToken(user)
	require.NoError(t, err)
	store.On("GetUserByEmail", mock.Anything, "m@m.com").Return(user, nil)
	return store, token
}

func TestListPosts_StorageError(t *testing.T) {
	store, token := authedMock(t)
	store.On("GetAllPosts", mock.Anything).Return([]models.Post(nil), errors.New("connection refused"))
	api := newTestAPI(t, store)

	w := api.do(http.MethodGet, "/posts", token, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode[errorResponse](t, w).Error)
	store.AssertExpectations(t)
}

func TestGetPost_Mock(t *testing.T) {
	store, token := authedMock(t)
	expected := &models.Post{ID: 3, AuthorID: 7, Title: "Test Post", Text: "body"}
	store.On("GetPostByID", mock.Anything, int64(3)).Return(expected, nil)
	api := newTestAPI(t, store)

	w := api.do(http.MethodGet, "/posts/3", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Test Post", decode[models.Post](t, w).Title)
	store.AssertExpectations(t)
}

func TestStreamComments(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")
	api.do(http.MethodPost, "/posts", token, defaultPost)

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/posts/1/comments?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// the subscription is registered before the upgrade completes
	w := api.do(http.MethodPost, "/comments", token, map[string]any{"text": "live comment", "post_id": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Comment
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "live comment", got.Text)
	assert.Equal(t, int64(1), got.PostID)
}

func TestStreamComments_UnknownPost(t *testing.T) {
	api := newTestAPI(t, storage.NewMemoryStorage())
	token := api.login("1@1.com")
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/posts/5/comments?access_token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamComments_OriginCheck(t *testing.T) {
	api := newTestAPIWithOrigins(t, storage.NewMemoryStorage(), []string{"https://blog.example"})
	token := api.login("1@1.com")
	api.do(http.MethodPost, "/posts", token, defaultPost)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/posts/1/comments?access_token=" + token

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://blog.example"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	get := func(api *testAPI, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		api.handler.ServeHTTP(w, req)
		return w
	}

	t.Run("wildcard without credentials", func(t *testing.T) {
		api := newTestAPI(t, storage.NewMemoryStorage())
		w := get(api, "https://anywhere.example")
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("listed origins", func(t *testing.T) {
		api := newTestAPIWithOrigins(t, storage.NewMemoryStorage(), []string{"https://blog.example"})

		w := get(api, "https://blog.example")
		assert.Equal(t, "https://blog.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		w = get(api, "https://evil.example")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
