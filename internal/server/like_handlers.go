package server

import (
	"github.com/gofiber/fiber/v2"
)

// TogglePostLike handles POST /api/posts/:id/like
// This endpoint toggles the like status - if already liked, it unlikes; if not liked, it likes
func (s *Server) TogglePostLike(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := callerID(c)
	if err != nil {
		return nil
	}
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.likeService.ToggleLikeOnPost(ctx, userID, postID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(result)
}

// ToggleCommentLike handles POST /api/comments/:id/like
func (s *Server) ToggleCommentLike(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID, err := callerID(c)
	if err != nil {
		return nil
	}
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.likeService.ToggleLikeOnComment(ctx, userID, commentID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(result)
}
