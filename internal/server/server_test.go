package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"socialapp/internal/config"
	"socialapp/internal/middleware"
	"socialapp/internal/models"
	"socialapp/internal/service"
	"socialapp/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "server-test-secret-at-least-32-characters"

type testEnv struct {
	app   *fiber.App
	alice *models.User
	bob   *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	cfg := &config.Config{JWTSecret: testJWTSecret, Port: "0", FeedPreviewSize: 3}
	s, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	return &testEnv{
		app:   s.App(),
		alice: testutil.CreateUser(t, db, "alice"),
		bob:   testutil.CreateUser(t, db, "bob"),
	}
}

func tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": middleware.TokenIssuer,
		"aud": middleware.TokenAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// do sends a request as user (0 for anonymous) and decodes a JSON response
// into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path string, user uint, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, user))
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", 0, nil, nil))

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", 0, nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["database"])
	assert.Equal(t, "disabled", ready.Checks["redis"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/posts"},
		{http.MethodGet, "/api/posts/me"},
		{http.MethodDelete, "/api/posts/1"},
		{http.MethodPost, "/api/posts/1/comments"},
		{http.MethodPost, "/api/posts/1/like"},
		{http.MethodPost, "/api/comments/1/replies"},
		{http.MethodPost, "/api/comments/1/like"},
		{http.MethodDelete, "/api/comments/1"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			var body models.ErrorResponse
			status := env.do(t, rt.method, rt.path, 0, nil, &body)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, models.CodeUnauthorized, body.Code)
		})
	}
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing content", map[string]interface{}{"title": "hi"}},
		{"blank content", map[string]interface{}{"content": "   "}},
		{"too many images", map[string]interface{}{"content": "c", "images": make([]string, 11)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body models.ErrorResponse
			status := env.do(t, http.MethodPost, "/api/posts", env.alice.ID, tt.body, &body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, models.CodeValidation, body.Code)
		})
	}
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.alice.ID, env.bob.ID

	var post models.Post
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/posts", alice,
		map[string]interface{}{"title": "Hello", "content": "first post", "images": []string{"https://img/1.png"}}, &post))
	require.NotZero(t, post.ID)
	assert.Equal(t, alice, post.UserID)
	assert.Equal(t, []string{"https://img/1.png"}, post.Images)
	postPath := fmt.Sprintf("/api/posts/%d", post.ID)

	var top service.CommentResult
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, postPath+"/comments", bob,
		map[string]string{"content": "nice"}, &top))
	assert.Equal(t, 1, top.Post.CommentsCount)
	assert.True(t, top.Comment.IsTopLevel())

	var reply service.CommentResult
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost,
		fmt.Sprintf("/api/comments/%d/replies", top.Comment.ID), alice,
		map[string]string{"content": "thanks"}, &reply))
	assert.Equal(t, 2, reply.Post.CommentsCount)
	require.NotNil(t, reply.Comment.ParentCommentID)
	assert.Equal(t, top.Comment.ID, *reply.Comment.ParentCommentID)
	assert.Equal(t, post.ID, reply.Comment.PostID)

	var liked service.ToggleResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, postPath+"/like", bob, nil, &liked))
	assert.Equal(t, models.LikeAdded, liked.State)
	assert.Equal(t, 1, liked.Post.LikesCount)

	var commentLike service.ToggleResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost,
		fmt.Sprintf("/api/comments/%d/like", top.Comment.ID), alice, nil, &commentLike))
	assert.Equal(t, models.LikeAdded, commentLike.State)
	require.NotNil(t, commentLike.Comment)
	assert.Equal(t, 1, commentLike.Comment.LikesCount)

	var feed models.FeedPage
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts?page=1&page_size=10", 0, nil, &feed))
	require.Len(t, feed.Items, 1)
	assert.Equal(t, 1, feed.Items[0].LikesCount)
	assert.Equal(t, 2, feed.Items[0].CommentsCount)
	require.Len(t, feed.Items[0].RecentComments, 1)
	assert.Equal(t, "nice", feed.Items[0].RecentComments[0].Content)
	assert.Equal(t, 1, feed.Items[0].RecentComments[0].LikesCount)

	var comments models.CommentPage
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, postPath+"/comments", 0, nil, &comments))
	require.Len(t, comments.Items, 1)
	assert.Equal(t, int64(1), comments.TotalCount)

	var replies []models.Comment
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet,
		fmt.Sprintf("/api/comments/%d/replies", top.Comment.ID), 0, nil, &replies))
	require.Len(t, replies, 1)
	assert.Equal(t, "thanks", replies[0].Content)

	// Only the author may delete; a refused delete changes nothing.
	var forbidden models.ErrorResponse
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/comments/%d", top.Comment.ID), alice, nil, &forbidden))
	assert.Equal(t, models.CodeForbidden, forbidden.Code)

	var got models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, postPath, 0, nil, &got))
	assert.Equal(t, 2, got.CommentsCount)

	var deleted service.DeleteCommentResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/comments/%d", top.Comment.ID), bob, nil, &deleted))
	assert.Equal(t, int64(2), deleted.DeletedCount)
	assert.Equal(t, 0, deleted.Post.CommentsCount)

	var mine models.FeedPage
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/posts/me", alice, nil, &mine))
	assert.Equal(t, int64(1), mine.TotalCount)

	var bobs models.FeedPage
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet,
		fmt.Sprintf("/api/users/%d/posts", bob), 0, nil, &bobs))
	assert.Equal(t, int64(0), bobs.TotalCount)
	assert.Empty(t, bobs.Items)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, postPath, bob, nil, nil))

	var removed models.Post
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, postPath, alice, nil, &removed))
	assert.Equal(t, post.ID, removed.ID)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, postPath, 0, nil, nil))
}

func TestNotFoundAndBadIDs(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   uint
		body   interface{}
		status int
	}{
		{"get missing post", http.MethodGet, "/api/posts/999", 0, nil, http.StatusNotFound},
		{"bad post id", http.MethodGet, "/api/posts/abc", 0, nil, http.StatusBadRequest},
		{"comments on missing post", http.MethodGet, "/api/posts/999/comments", 0, nil, http.StatusNotFound},
		{"replies to missing comment", http.MethodGet, "/api/comments/999/replies", 0, nil, http.StatusNotFound},
		{"comment on missing post", http.MethodPost, "/api/posts/999/comments", env.alice.ID,
			map[string]string{"content": "hi"}, http.StatusNotFound},
		{"reply to missing comment", http.MethodPost, "/api/comments/999/replies", env.alice.ID,
			map[string]string{"content": "hi"}, http.StatusNotFound},
		{"like missing post", http.MethodPost, "/api/posts/999/like", env.alice.ID, nil, http.StatusNotFound},
		{"like missing comment", http.MethodPost, "/api/comments/999/like", env.alice.ID, nil, http.StatusNotFound},
		{"delete missing comment", http.MethodDelete, "/api/comments/999", env.alice.ID, nil, http.StatusNotFound},
		{"posts of unknown user", http.MethodGet, "/api/users/999/posts", 0, nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, env.do(t, tt.method, tt.path, tt.user, tt.body, nil))
		})
	}
}

func TestToggleLikeTwiceOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	var post models.Post
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/posts", env.alice.ID,
		map[string]string{"content": "like me"}, &post))
	likePath := fmt.Sprintf("/api/posts/%d/like", post.ID)

	var first, second service.ToggleResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, likePath, env.bob.ID, nil, &first))
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, likePath, env.bob.ID, nil, &second))

	assert.Equal(t, models.LikeAdded, first.State)
	assert.Equal(t, models.LikeRemoved, second.State)
	assert.Equal(t, 0, second.Post.LikesCount)
}
