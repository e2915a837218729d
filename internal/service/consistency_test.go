package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"socialapp/internal/cache"
	"socialapp/internal/models"
	"socialapp/internal/repository"
	"socialapp/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	posts     *PostService
	comments  *CommentService
	likes     *LikeService
	feed      *FeedService
	reconcile *ReconcileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	tx := repository.NewTransactor(db)

	return &fixture{
		db:        db,
		posts:     NewPostService(postRepo, tx),
		comments:  NewCommentService(commentRepo, postRepo, tx),
		likes:     NewLikeService(tx),
		feed:      NewFeedService(postRepo, commentRepo, repository.NewUserRepository(db), DefaultPreviewSize),
		reconcile: NewReconcileService(postRepo, tx),
	}
}

func (f *fixture) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func (f *fixture) post(t *testing.T, id uint) *models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, f.db.First(&p, id).Error)
	return &p
}

func TestScenario_CommentReplyLikeDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := testutil.CreateUser(t, f.db, "u1")
	u2 := testutil.CreateUser(t, f.db, "u2")
	u3 := testutil.CreateUser(t, f.db, "u3")

	p, err := f.posts.CreatePost(ctx, CreatePostInput{UserID: u1.ID, Title: "hello", Content: "first post", Images: []string{"a.png"}})
	require.NoError(t, err)
	assert.Zero(t, p.LikesCount)
	assert.Zero(t, p.CommentsCount)
	require.NotNil(t, p.Author)
	assert.Equal(t, "u1", p.Author.Name)

	c1, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: u2.ID, PostID: p.ID, Content: "C1"})
	require.NoError(t, err)
	assert.Equal(t, 1, c1.Post.CommentsCount)
	assert.True(t, c1.Comment.IsTopLevel())

	r1, err := f.comments.AddReply(ctx, AddReplyInput{UserID: u3.ID, ParentCommentID: c1.Comment.ID, Content: "R1"})
	require.NoError(t, err)
	assert.Equal(t, 2, r1.Post.CommentsCount)
	assert.Equal(t, p.ID, r1.Comment.PostID)
	require.NotNil(t, r1.Comment.ParentCommentID)
	assert.Equal(t, c1.Comment.ID, *r1.Comment.ParentCommentID)

	liked, err := f.likes.ToggleLikeOnPost(ctx, u1.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeAdded, liked.State)
	assert.Equal(t, 1, liked.Post.LikesCount)

	unliked, err := f.likes.ToggleLikeOnPost(ctx, u1.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeRemoved, unliked.State)
	assert.Equal(t, 0, unliked.Post.LikesCount)

	deleted, err := f.comments.DeleteComment(ctx, DeleteCommentInput{UserID: u2.ID, CommentID: c1.Comment.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted.DeletedCount)
	assert.Equal(t, 0, deleted.Post.CommentsCount)

	_, err = f.comments.ListReplies(ctx, c1.Comment.ID)
	assertCode(t, err, models.CodeNotFound)
	assert.Zero(t, f.countRows(t, &models.Comment{}, "id = ?", r1.Comment.ID))
}

func TestLikeToggle_IdempotentRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, f.db, "owner")
	fan := testutil.CreateUser(t, f.db, "fan")
	post := testutil.CreatePost(t, f.db, owner.ID, "p")
	comment, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: owner.ID, PostID: post.ID, Content: "c"})
	require.NoError(t, err)

	_, err = f.likes.ToggleLikeOnPost(ctx, owner.ID, post.ID)
	require.NoError(t, err)
	before := f.post(t, post.ID).LikesCount

	_, err = f.likes.ToggleLikeOnPost(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	_, err = f.likes.ToggleLikeOnPost(ctx, fan.ID, post.ID)
	require.NoError(t, err)

	assert.Equal(t, before, f.post(t, post.ID).LikesCount)
	assert.Zero(t, f.countRows(t, &models.Like{}, "user_id = ? AND post_id = ?", fan.ID, post.ID))

	on, err := f.likes.ToggleLikeOnComment(ctx, fan.ID, comment.Comment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeAdded, on.State)
	assert.Nil(t, on.Post)
	assert.Equal(t, 1, on.Comment.LikesCount)

	off, err := f.likes.ToggleLikeOnComment(ctx, fan.ID, comment.Comment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeRemoved, off.State)
	assert.Equal(t, 0, off.Comment.LikesCount)

	_, err = f.likes.ToggleLikeOnPost(ctx, fan.ID, post.ID+99)
	assertCode(t, err, models.CodeNotFound)
	_, err = f.likes.ToggleLikeOnComment(ctx, fan.ID, comment.Comment.ID+99)
	assertCode(t, err, models.CodeNotFound)
}

func TestLikeToggle_ConcurrentTogglesKeepCountExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, f.db, "owner")
	post := testutil.CreatePost(t, f.db, owner.ID, "p")

	const fans = 8
	var users []*models.User
	for i := 0; i < fans; i++ {
		users = append(users, testutil.CreateUser(t, f.db, fmt.Sprintf("fan%d", i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, fans*3)
	for _, u := range users {
		// Each fan toggles three times, ending liked.
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(userID uint) {
				defer wg.Done()
				_, err := f.likes.ToggleLikeOnPost(ctx, userID, post.ID)
				errs <- err
			}(u.ID)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows := f.countRows(t, &models.Like{}, "post_id = ?", post.ID)
	assert.Equal(t, int64(fans), rows)
	assert.Equal(t, int(rows), f.post(t, post.ID).LikesCount)
}

func TestCommentsCount_TracksLiveRowsUnderRandomOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users := []*models.User{
		testutil.CreateUser(t, f.db, "a"),
		testutil.CreateUser(t, f.db, "b"),
		testutil.CreateUser(t, f.db, "c"),
	}
	post := testutil.CreatePost(t, f.db, users[0].ID, "p")

	rng := rand.New(rand.NewSource(42))
	var live []*models.Comment
	for step := 0; step < 60; step++ {
		user := users[rng.Intn(len(users))]
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			res, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: user.ID, PostID: post.ID, Content: fmt.Sprintf("top %d", step)})
			require.NoError(t, err)
			live = append(live, res.Comment)
		case op == 1:
			parent := live[rng.Intn(len(live))]
			res, err := f.comments.AddReply(ctx, AddReplyInput{UserID: user.ID, ParentCommentID: parent.ID, Content: fmt.Sprintf("reply %d", step)})
			if models.IsNotFound(err) {
				continue
			}
			require.NoError(t, err)
			live = append(live, res.Comment)
		default:
			target := live[rng.Intn(len(live))]
			_, err := f.comments.DeleteComment(ctx, DeleteCommentInput{UserID: target.UserID, CommentID: target.ID})
			if !models.IsNotFound(err) {
				require.NoError(t, err)
			}
		}

		rows := f.countRows(t, &models.Comment{}, "post_id = ?", post.ID)
		require.Equal(t, int(rows), f.post(t, post.ID).CommentsCount, "step %d", step)
		assert.Zero(t, f.countRows(t, &models.Comment{},
			"parent_comment_id IS NOT NULL AND parent_comment_id NOT IN (SELECT id FROM comments)"),
			"dangling reply after step %d", step)
	}
}

func TestDeleteComment_CascadesWholeSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, f.db, "u")
	other := testutil.CreateUser(t, f.db, "other")
	post := testutil.CreatePost(t, f.db, u.ID, "p")

	t.Run("two direct replies remove three rows", func(t *testing.T) {
		top, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: u.ID, PostID: post.ID, Content: "top"})
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			_, err := f.comments.AddReply(ctx, AddReplyInput{UserID: other.ID, ParentCommentID: top.Comment.ID, Content: "r"})
			require.NoError(t, err)
		}
		before := f.post(t, post.ID).CommentsCount

		res, err := f.comments.DeleteComment(ctx, DeleteCommentInput{UserID: u.ID, CommentID: top.Comment.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.DeletedCount)
		assert.Equal(t, before-3, res.Post.CommentsCount)
	})

	t.Run("deep thread and its likes are removed", func(t *testing.T) {
		top, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: u.ID, PostID: post.ID, Content: "root"})
		require.NoError(t, err)
		parent := top.Comment.ID
		var deepest uint
		for depth := 0; depth < 4; depth++ {
			res, err := f.comments.AddReply(ctx, AddReplyInput{UserID: other.ID, ParentCommentID: parent, Content: "deeper"})
			require.NoError(t, err)
			parent = res.Comment.ID
			deepest = res.Comment.ID
		}
		_, err = f.likes.ToggleLikeOnComment(ctx, u.ID, deepest)
		require.NoError(t, err)
		sibling, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: other.ID, PostID: post.ID, Content: "survivor"})
		require.NoError(t, err)

		res, err := f.comments.DeleteComment(ctx, DeleteCommentInput{UserID: u.ID, CommentID: top.Comment.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(5), res.DeletedCount)
		assert.Equal(t, 1, res.Post.CommentsCount)
		assert.Zero(t, f.countRows(t, &models.Like{}, "comment_id = ?", deepest))
		assert.Equal(t, int64(1), f.countRows(t, &models.Comment{}, "id = ?", sibling.Comment.ID))
	})
}

func TestOwnershipEnforcement_NoMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, f.db, "owner")
	intruder := testutil.CreateUser(t, f.db, "intruder")
	post := testutil.CreatePost(t, f.db, owner.ID, "p")
	c, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: owner.ID, PostID: post.ID, Content: "mine"})
	require.NoError(t, err)
	_, err = f.comments.AddReply(ctx, AddReplyInput{UserID: owner.ID, ParentCommentID: c.Comment.ID, Content: "also mine"})
	require.NoError(t, err)

	_, err = f.comments.DeleteComment(ctx, DeleteCommentInput{UserID: intruder.ID, CommentID: c.Comment.ID})
	assertCode(t, err, models.CodeForbidden)
	assert.Equal(t, int64(2), f.countRows(t, &models.Comment{}, "post_id = ?", post.ID))
	assert.Equal(t, 2, f.post(t, post.ID).CommentsCount)

	_, err = f.posts.DeletePost(ctx, DeletePostInput{UserID: intruder.ID, PostID: post.ID})
	assertCode(t, err, models.CodeForbidden)
	assert.Equal(t, int64(1), f.countRows(t, &models.Post{}, "id = ?", post.ID))

	_, err = f.comments.DeleteComment(ctx, DeleteCommentInput{UserID: owner.ID, CommentID: c.Comment.ID + 100})
	assertCode(t, err, models.CodeNotFound)
	_, err = f.posts.DeletePost(ctx, DeletePostInput{UserID: owner.ID, PostID: post.ID + 100})
	assertCode(t, err, models.CodeNotFound)
}

func TestDeletePost_RemovesCommentsAndLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, f.db, "owner")
	fan := testutil.CreateUser(t, f.db, "fan")
	post := testutil.CreatePost(t, f.db, owner.ID, "p")
	keep := testutil.CreatePost(t, f.db, owner.ID, "keep")

	c, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: fan.ID, PostID: post.ID, Content: "c"})
	require.NoError(t, err)
	_, err = f.comments.AddReply(ctx, AddReplyInput{UserID: fan.ID, ParentCommentID: c.Comment.ID, Content: "r"})
	require.NoError(t, err)
	_, err = f.likes.ToggleLikeOnComment(ctx, owner.ID, c.Comment.ID)
	require.NoError(t, err)
	_, err = f.likes.ToggleLikeOnPost(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	_, err = f.likes.ToggleLikeOnPost(ctx, fan.ID, keep.ID)
	require.NoError(t, err)

	deleted, err := f.posts.DeletePost(ctx, DeletePostInput{UserID: owner.ID, PostID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, post.ID, deleted.ID)
	assert.Equal(t, 2, deleted.CommentsCount)

	_, err = f.feed.GetPost(ctx, post.ID)
	assertCode(t, err, models.CodeNotFound)
	assert.Zero(t, f.countRows(t, &models.Comment{}, "post_id = ?", post.ID))
	assert.Zero(t, f.countRows(t, &models.Like{}, "comment_id = ?", c.Comment.ID))
	assert.Equal(t, int64(1), f.countRows(t, &models.Like{}, "1 = 1"))
}

func TestFeed_PaginationBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, f.db, "owner")
	for i := 0; i < 45; i++ {
		testutil.CreatePost(t, f.db, owner.ID, fmt.Sprintf("post %02d", i))
	}

	first, err := f.feed.ListFeed(ctx, models.NewPageRequest(1, 20))
	require.NoError(t, err)
	assert.Len(t, first.Items, 20)
	assert.Equal(t, int64(45), first.TotalCount)
	assert.Equal(t, 3, first.TotalPages)
	assert.True(t, first.HasNextPage)
	assert.False(t, first.HasPreviousPage)
	assert.Equal(t, "post 44", first.Items[0].Content)
	require.NotNil(t, first.Items[0].Author)
	assert.Equal(t, "owner", first.Items[0].Author.Name)

	last, err := f.feed.ListFeed(ctx, models.NewPageRequest(3, 20))
	require.NoError(t, err)
	assert.Len(t, last.Items, 5)
	assert.False(t, last.HasNextPage)
	assert.True(t, last.HasPreviousPage)
	assert.Equal(t, "post 00", last.Items[4].Content)

	beyond, err := f.feed.ListFeed(ctx, models.NewPageRequest(9, 20))
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)

	owned, err := f.feed.ListByOwner(ctx, owner.ID, models.NewPageRequest(2, 40))
	require.NoError(t, err)
	assert.Len(t, owned.Items, 5)
	assert.Equal(t, 2, owned.TotalPages)

	_, err = f.feed.ListByOwner(ctx, owner.ID+100, models.NewPageRequest(1, 20))
	assertCode(t, err, models.CodeNotFound)
}

func TestFeed_PreviewsNewestTopLevelOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, f.db, "u")
	busy := testutil.CreatePost(t, f.db, u.ID, "busy")
	quiet := testutil.CreatePost(t, f.db, u.ID, "quiet")

	var last *CommentResult
	for i := 0; i < 5; i++ {
		res, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: u.ID, PostID: busy.ID, Content: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
		last = res
	}
	_, err := f.comments.AddReply(ctx, AddReplyInput{UserID: u.ID, ParentCommentID: last.Comment.ID, Content: "reply"})
	require.NoError(t, err)
	_, err = f.likes.ToggleLikeOnComment(ctx, u.ID, last.Comment.ID)
	require.NoError(t, err)

	page, err := f.feed.ListFeed(ctx, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	byID := map[uint]*models.Post{}
	for _, p := range page.Items {
		byID[p.ID] = p
	}
	assert.Equal(t, []models.CommentPreview{
		{Content: "c4", LikesCount: 1},
		{Content: "c3", LikesCount: 0},
		{Content: "c2", LikesCount: 0},
	}, byID[busy.ID].RecentComments)
	assert.Equal(t, 6, byID[busy.ID].CommentsCount)
	assert.Empty(t, byID[quiet.ID].RecentComments)

	comments, err := f.comments.ListTopLevel(ctx, busy.ID, models.NewPageRequest(1, 2))
	require.NoError(t, err)
	assert.Len(t, comments.Items, 2)
	assert.Equal(t, int64(5), comments.TotalCount)
	assert.Equal(t, 3, comments.TotalPages)
	assert.Equal(t, "c4", comments.Items[0].Content)

	_, err = f.comments.ListTopLevel(ctx, busy.ID+100, models.NewPageRequest(1, 2))
	assertCode(t, err, models.CodeNotFound)

	replies, err := f.comments.ListReplies(ctx, last.Comment.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.NotNil(t, replies[0].Author)
	assert.Equal(t, "u", replies[0].Author.Name)
}

func TestReconcile_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, f.db, "u")
	post := testutil.CreatePost(t, f.db, u.ID, "p")
	c, err := f.comments.AddTopLevelComment(ctx, AddCommentInput{UserID: u.ID, PostID: post.ID, Content: "c"})
	require.NoError(t, err)
	_, err = f.likes.ToggleLikeOnPost(ctx, u.ID, post.ID)
	require.NoError(t, err)
	_, err = f.likes.ToggleLikeOnComment(ctx, u.ID, c.Comment.ID)
	require.NoError(t, err)

	clean, err := f.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{PostsScanned: 1, CommentsScanned: 1}, *clean)

	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumns(map[string]interface{}{"likes_count": 7, "comments_count": 0}).Error)
	require.NoError(t, f.db.Model(&models.Comment{}).Where("id = ?", c.Comment.ID).
		UpdateColumn("likes_count", 4).Error)

	report, err := f.reconcile.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PostsRepaired)
	assert.Equal(t, 1, report.CommentsRepaired)

	fixed := f.post(t, post.ID)
	assert.Equal(t, 1, fixed.LikesCount)
	assert.Equal(t, 1, fixed.CommentsCount)

	var comment models.Comment
	require.NoError(t, f.db.First(&comment, c.Comment.ID).Error)
	assert.Equal(t, 1, comment.LikesCount)

	_, err = f.reconcile.ReconcilePost(ctx, post.ID+50)
	assertCode(t, err, models.CodeNotFound)
}

func TestGetPost_CacheInvalidatedAfterToggle(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		cache.SetClient(nil)
		mr.Close()
	})

	f := newFixture(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, f.db, "u")
	post := testutil.CreatePost(t, f.db, u.ID, "p")

	cached, err := f.feed.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, cached.LikesCount)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	_, err = f.likes.ToggleLikeOnPost(ctx, u.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	fresh, err := f.feed.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.LikesCount)
	require.NotNil(t, fresh.Author)
	assert.Equal(t, "u", fresh.Author.Name)
}
