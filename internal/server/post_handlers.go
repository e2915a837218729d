package server

import (
	"socialapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title   string   `json:"title" validate:"max=300"`
	Content string   `json:"content" validate:"required,max=20000"`
	Images  []string `json:"images" validate:"max=10,dive,max=500"`
}

// ListFeed handles GET /api/posts
func (s *Server) ListFeed(c *fiber.Ctx) error {
	feed, err := s.feedService.ListFeed(c.UserContext(), parsePage(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(feed)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := callerID(c)
	if err != nil {
		return nil
	}

	var req createPostRequest
	if err := bindBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		UserID:  userID,
		Title:   req.Title,
		Content: req.Content,
		Images:  req.Images,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetMyPosts handles GET /api/posts/me
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return nil
	}

	posts, err := s.feedService.ListByOwner(c.UserContext(), userID, parsePage(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ownerID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	posts, err := s.feedService.ListByOwner(c.UserContext(), ownerID, parsePage(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.feedService.GetPost(c.UserContext(), postID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id and returns the removed post.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := callerID(c)
	if err != nil {
		return nil
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	deleted, err := s.postService.DeletePost(ctx, service.DeletePostInput{UserID: userID, PostID: postID})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(deleted)
}
