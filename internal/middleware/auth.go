package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"socialapp/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Accepted token issuer and audience. Tokens are minted by the identity
// service; this backend only verifies them.
const (
	TokenIssuer   = "socialapp-identity"
	TokenAudience = "socialapp-client"
)

var (
	errMissingToken   = errors.New("authorization required")
	errInvalidToken   = errors.New("invalid or expired token")
	errInvalidSubject = errors.New("invalid subject claim")
)

// CallerID parses and verifies a bearer token and returns the user id in its
// subject claim.
func CallerID(tokenString, secret string) (uint, error) {
	if tokenString == "" {
		return 0, errMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, errInvalidSubject
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, errInvalidSubject
	}
	return uint(userID), nil
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// AuthRequired rejects requests without a valid bearer token and stores the
// caller id in locals ("userID") and in the user context.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := CallerID(bearerToken(c), secret)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, errMissingToken) {
				msg = "Authorization required"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		c.Locals("userID", userID)
		ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// CurrentCallerID returns the authenticated caller stored by AuthRequired.
func CurrentCallerID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}
