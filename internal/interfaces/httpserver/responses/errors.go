package responses

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// ErrorResponse documents the error body written by platformerrors.
type ErrorResponse = platformerrors.HTTPErrorResponse

// HandleError writes err using its platform type, or 500 for anything else.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().Str("path", c.Request.URL.Path).Str("context", message).Logger()
	platformerrors.WriteError(c, err, logger)
}

// HandleNewError creates a route-level error and writes it.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message, code string) {
	err := platformerrors.NewError(c.Request.Context(), platformerrors.LayerRoute, errorType, message, nil, code)
	platformerrors.WriteHTTPError(c, err, log.Logger)
}
