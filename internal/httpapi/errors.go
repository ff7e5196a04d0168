package httpapi

import (
	"errors"
	"net/http"

	"tenant-platform/internal/auth"
	"tenant-platform/internal/membership"
	"tenant-platform/internal/rbac"
	"tenant-platform/internal/records"

	"github.com/gin-gonic/gin"
)

const (
	messageInvalidRequest = "Invalid request"
	messageNotFound       = "Not found"
	messageConflict       = "Conflict"
	messageLastOwner      = "Organization must keep an active owner"
)

// abortError maps a service error to a status and a fixed message. Unknown errors are 500 and
// are attached to the gin context for the request log; their text never reaches the client.
func abortError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNoPrincipal):
		return http.StatusUnauthorized, auth.MessageUnauthorized
	case errors.Is(err, rbac.ErrMalformedIdentifier):
		return http.StatusBadRequest, rbac.MessageInvalidIdentifier
	case errors.Is(err, rbac.ErrAccessDenied):
		return http.StatusForbidden, rbac.MessageAccessDenied
	case errors.Is(err, membership.ErrInvalidArgument), errors.Is(err, records.ErrInvalidArgument):
		return http.StatusBadRequest, messageInvalidRequest
	case errors.Is(err, membership.ErrNotFound), errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound, messageNotFound
	case errors.Is(err, membership.ErrLastOwner):
		return http.StatusConflict, messageLastOwner
	case errors.Is(err, membership.ErrAlreadyMember), errors.Is(err, records.ErrConflict):
		return http.StatusConflict, messageConflict
	default:
		return http.StatusInternalServerError, rbac.MessageInternal
	}
}
