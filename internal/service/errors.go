// Package service holds the orchestrators that keep posts, comments, likes
// and their denormalized counters consistent.
package service

import (
	"context"

	"socialapp/internal/models"
	"socialapp/internal/observability"
)

var serviceLogger = observability.NewStructuredLogger()

// surface passes business outcomes through unchanged. Anything else is
// logged and replaced by a generic internal error.
func surface(ctx context.Context, span *observability.Span, service, method string, err error, fields observability.Fields) error {
	if err == nil {
		return nil
	}
	switch models.ErrorCode(err) {
	case models.CodeNotFound, models.CodeForbidden, models.CodeValidation, models.CodeUnauthorized:
		return err
	}
	span.SetError(err)
	serviceLogger.LogServiceError(ctx, service, method, err, fields)
	if models.ErrorCode(err) == models.CodeInternal {
		return err
	}
	return models.NewInternalError(err)
}
