// Package seed provides helpers to create demo data for development. All
// writes go through the services, so seeded counters are consistent with
// the seeded rows.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"socialapp/internal/middleware"
	"socialapp/internal/models"
	"socialapp/internal/repository"
	"socialapp/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	NumPosts        int
	CommentsPerPost int
	// ReplyRatio is the share of comments posted as replies to an earlier
	// comment of the same post.
	ReplyRatio float64
	// LikeRatio is the chance that a given user likes a given post or comment.
	LikeRatio float64
	// Seed makes the generated content reproducible. Zero picks a random seed.
	Seed int64
}

// DefaultOptions returns a small but non-trivial data set.
func DefaultOptions() Options {
	return Options{
		NumUsers:        10,
		NumPosts:        30,
		CommentsPerPost: 4,
		ReplyRatio:      0.4,
		LikeRatio:       0.3,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
}

// Seeder creates users directly and everything else through the services.
type Seeder struct {
	users    repository.UserRepository
	posts    *service.PostService
	comments *service.CommentService
	likes    *service.LikeService
}

// NewSeeder wires a Seeder over db.
func NewSeeder(db *gorm.DB) *Seeder {
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	tx := repository.NewTransactor(db)

	return &Seeder{
		users:    repository.NewUserRepository(db),
		posts:    service.NewPostService(postRepo, tx),
		comments: service.NewCommentService(commentRepo, postRepo, tx),
		likes:    service.NewLikeService(tx),
	}
}

// Run creates opts.NumUsers users, opts.NumPosts posts spread across them,
// comment threads on each post, and random likes.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.NumUsers <= 0 {
		return nil, fmt.Errorf("seed: at least one user is required")
	}

	faker := gofakeit.New(opts.Seed)
	summary := &Summary{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user := &models.User{
			Name:  faker.Name(),
			Email: fmt.Sprintf("%d.%s", i, strings.ToLower(faker.Email())),
			Image: fmt.Sprintf("https://picsum.photos/seed/%s/200/200", faker.UUID()),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("seed user %d: %w", i, err)
		}
		users = append(users, user)
	}
	summary.Users = len(users)

	for i := 0; i < opts.NumPosts; i++ {
		author := users[faker.Number(0, len(users)-1)]
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			UserID:  author.ID,
			Title:   faker.Sentence(5),
			Content: faker.Paragraph(1, 3, 12, "\n"),
			Images:  randomImages(faker),
		})
		if err != nil {
			return nil, fmt.Errorf("seed post %d: %w", i, err)
		}
		summary.Posts++

		commentIDs, err := s.seedThread(ctx, faker, opts, users, post.ID)
		if err != nil {
			return nil, err
		}
		summary.Comments += len(commentIDs)

		likes, err := s.seedLikes(ctx, faker, opts.LikeRatio, users, post.ID, commentIDs)
		if err != nil {
			return nil, err
		}
		summary.Likes += likes
	}

	middleware.Logger.InfoContext(ctx, "Seeding complete",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
		slog.Int("comments", summary.Comments),
		slog.Int("likes", summary.Likes),
	)
	return summary, nil
}

func randomImages(faker *gofakeit.Faker) []string {
	n := faker.Number(0, 2)
	images := make([]string, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, fmt.Sprintf("https://picsum.photos/seed/%s/800/800", faker.UUID()))
	}
	return images
}

func (s *Seeder) seedThread(ctx context.Context, faker *gofakeit.Faker, opts Options, users []*models.User, postID uint) ([]uint, error) {
	ids := make([]uint, 0, opts.CommentsPerPost)
	for j := 0; j < opts.CommentsPerPost; j++ {
		author := users[faker.Number(0, len(users)-1)]
		content := faker.Sentence(faker.Number(3, 15))

		var (
			result *service.CommentResult
			err    error
		)
		if len(ids) > 0 && faker.Float64Range(0, 1) < opts.ReplyRatio {
			parent := ids[faker.Number(0, len(ids)-1)]
			result, err = s.comments.AddReply(ctx, service.AddReplyInput{
				UserID:          author.ID,
				ParentCommentID: parent,
				Content:         content,
			})
		} else {
			result, err = s.comments.AddTopLevelComment(ctx, service.AddCommentInput{
				UserID:  author.ID,
				PostID:  postID,
				Content: content,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("seed comment on post %d: %w", postID, err)
		}
		ids = append(ids, result.Comment.ID)
	}
	return ids, nil
}

func (s *Seeder) seedLikes(ctx context.Context, faker *gofakeit.Faker, ratio float64, users []*models.User, postID uint, commentIDs []uint) (int, error) {
	likes := 0
	for _, user := range users {
		if faker.Float64Range(0, 1) < ratio {
			if _, err := s.likes.ToggleLikeOnPost(ctx, user.ID, postID); err != nil {
				return 0, fmt.Errorf("seed like on post %d: %w", postID, err)
			}
			likes++
		}
		for _, commentID := range commentIDs {
			if faker.Float64Range(0, 1) < ratio {
				if _, err := s.likes.ToggleLikeOnComment(ctx, user.ID, commentID); err != nil {
					return 0, fmt.Errorf("seed like on comment %d: %w", commentID, err)
				}
				likes++
			}
		}
	}
	return likes, nil
}
