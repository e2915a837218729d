package server

import (
	"errors"
	"strings"
	"unicode"

	"socialapp/internal/middleware"
	"socialapp/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already sent the error response. The
// handler returns nil so errorHandler does not replace it.
var errResponseWritten = errors.New("response already written")

var validate = validator.New()

// errorHandler is fiber's last resort for errors returned by handlers.
// Fiber errors keep their status; anything else becomes a generic 500.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "Unhandled request error", "error", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// statusFor maps an AppError code onto an HTTP status.
func statusFor(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// respondWithAppError writes err with the status its code maps to.
func respondWithAppError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, statusFor(err), err)
}

// parseID reads a positive integer route parameter. Anything else gets a
// 400 and errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam turns "id" into "ID" and "commentId" into "comment ID" for
// error messages.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel("postLike") is ["post", "Like"].
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parsePage reads page and page_size (or its alias limit) from the query.
// Missing or malformed values fall back to defaults; bounds are applied by
// models.NewPageRequest.
func parsePage(c *fiber.Ctx) models.PageRequest {
	size := c.QueryInt("page_size", 0)
	if size == 0 {
		size = c.QueryInt("limit", 0)
	}
	return models.NewPageRequest(c.QueryInt("page", 1), size)
}

// bindBody parses and validates a JSON request body.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func bindBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	if err := validate.Struct(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(validationMessage(err)))
		return errResponseWritten
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid request body"
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " exceeds maximum length of " + fe.Param()
	default:
		return field + " is invalid"
	}
}

// callerID returns the authenticated user id. Routes that call it sit behind
// AuthRequired, so a missing id is a wiring bug answered with 401.
func callerID(c *fiber.Ctx) (uint, error) {
	id, ok := middleware.CurrentCallerID(c)
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
		return 0, errResponseWritten
	}
	return id, nil
}
