package server

import (
	"socialapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := callerID(c)
	if err != nil {
		return nil
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req commentRequest
	if err := bindBody(c, &req); err != nil {
		return nil
	}

	created, err := s.commentService.AddTopLevelComment(ctx, service.AddCommentInput{
		UserID:  userID,
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListComments handles GET /api/posts/:id/comments
func (s *Server) ListComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListTopLevel(c.UserContext(), postID, parsePage(c))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(comments)
}

// CreateReply handles POST /api/comments/:id/replies
func (s *Server) CreateReply(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := callerID(c)
	if err != nil {
		return nil
	}
	parentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req commentRequest
	if err := bindBody(c, &req); err != nil {
		return nil
	}

	created, err := s.commentService.AddReply(ctx, service.AddReplyInput{
		UserID:          userID,
		ParentCommentID: parentID,
		Content:         req.Content,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListReplies handles GET /api/comments/:id/replies
func (s *Server) ListReplies(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	replies, err := s.commentService.ListReplies(c.UserContext(), commentID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(replies)
}

// DeleteComment handles DELETE /api/comments/:id. The comment's replies are
// removed with it.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := callerID(c)
	if err != nil {
		return nil
	}
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    userID,
		CommentID: commentID,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(result)
}
