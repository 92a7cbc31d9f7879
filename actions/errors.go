package actions

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

type errorResponse struct {
	status int
	code   string
}

var errorResponses = []struct {
	err error
	errorResponse
}{
	{model.ErrInvalidParams, errorResponse{BadRequest, model.ErrorCodeInvalidParams}},
	{model.ErrInvalidParent, errorResponse{BadRequest, model.ErrorCodeInvalidParent}},
	{model.ErrUnauthorized, errorResponse{AccessDenied, model.ErrorCodeUnauthorized}},
	{model.ErrActivationRequired, errorResponse{AccessDenied, model.ErrorCodeActivationRequired}},
	{model.ErrNotFound, errorResponse{NotFound, model.ErrorCodeNotFound}},
	{model.ErrDuplicateChild, errorResponse{Conflict, model.ErrorCodeDuplicateChild}},
	{model.ErrTooManyNodes, errorResponse{ValidationFailed, model.ErrorCodeTooManyNodes}},
	{model.ErrServiceUnavailable, errorResponse{ServerError, model.ErrorCodeServiceUnavailable}},
}

// abortWithServiceError maps the service errors to the http status and error code
func abortWithServiceError(c *gin.Context, err error) {
	for _, mapping := range errorResponses {
		if errors.Is(err, mapping.err) {
			abortWithErrorCode(c, mapping.status, err.Error(), mapping.code)
			return
		}
	}
	_ = c.Error(err)
	l := getlog(c)
	if errors.Is(err, context.Canceled) {
		l.Debug().Err(err).Str("section", "actions").Msg("Request canceled")
	} else {
		l.Error().Err(err).Str("section", "actions").Msg("Unable to process request")
	}
	abortWithErrorCode(c, ServerError, "Internal server error", model.ErrorCodeInternal)
}
