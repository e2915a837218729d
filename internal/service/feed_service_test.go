package service

import (
	"context"
	"errors"
	"testing"

	"socialapp/internal/models"
	"socialapp/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPostRepository mocks the read side of repository.PostRepository.
type MockPostRepository struct {
	repository.PostRepository
	mock.Mock
}

func (m *MockPostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockCommentRepository mocks the preview query of repository.CommentRepository.
type MockCommentRepository struct {
	repository.CommentRepository
	mock.Mock
}

func (m *MockCommentRepository) ListRecentTopLevel(ctx context.Context, postID uint, n int) ([]models.CommentPreview, error) {
	args := m.Called(ctx, postID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CommentPreview), args.Error(1)
}

func TestFeedService_ListFeedAttachesPreviews(t *testing.T) {
	posts := new(MockPostRepository)
	comments := new(MockCommentRepository)

	page := models.NewPageRequest(2, 2)
	posts.On("List", mock.Anything, 2, 2).Return([]*models.Post{{ID: 9}, {ID: 8}}, nil)
	posts.On("Count", mock.Anything).Return(int64(5), nil)
	comments.On("ListRecentTopLevel", mock.Anything, uint(9), 2).
		Return([]models.CommentPreview{{Content: "newest", LikesCount: 4}, {Content: "older"}}, nil)
	comments.On("ListRecentTopLevel", mock.Anything, uint(8), 2).
		Return([]models.CommentPreview{}, nil)

	feed, err := NewFeedService(posts, comments, nil, 2).ListFeed(context.Background(), page)
	require.NoError(t, err)

	require.Len(t, feed.Items, 2)
	assert.Equal(t, "newest", feed.Items[0].RecentComments[0].Content)
	assert.Equal(t, 4, feed.Items[0].RecentComments[0].LikesCount)
	assert.Empty(t, feed.Items[1].RecentComments)
	assert.Equal(t, int64(5), feed.TotalCount)
	assert.Equal(t, 3, feed.TotalPages)
	assert.True(t, feed.HasNextPage)
	assert.True(t, feed.HasPreviousPage)

	posts.AssertExpectations(t)
	comments.AssertExpectations(t)
}

func TestFeedService_PreviewFailureFailsListing(t *testing.T) {
	posts := new(MockPostRepository)
	comments := new(MockCommentRepository)

	posts.On("List", mock.Anything, 20, 0).Return([]*models.Post{{ID: 1}}, nil)
	posts.On("Count", mock.Anything).Return(int64(1), nil)
	comments.On("ListRecentTopLevel", mock.Anything, uint(1), DefaultPreviewSize).
		Return(nil, errors.New("connection refused"))

	_, err := NewFeedService(posts, comments, nil, 0).ListFeed(context.Background(), models.NewPageRequest(0, 0))
	assertCode(t, err, models.CodeInternal)
}
