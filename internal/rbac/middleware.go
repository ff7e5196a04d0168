package rbac

import (
	"errors"
	"net/http"

	"tenant-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// Response messages. Denials never say whether the organization or membership exists.
const (
	MessageAccessDenied      = "Access denied"
	MessageInvalidIdentifier = "Invalid identifier"
	MessageInternal          = "Internal server error"
)

const ginRoleKey = "org_role"

// RequireOrgAction authorizes the caller against the organization named by the path parameter.
// On Allow the resolved role is available to handlers via RoleFromGin.
//
// Use it only for routes whose organization comes from the path and where no resource row exists
// yet (listing, creation). Routes addressing an existing record must authorize against the
// record's own organization instead.
func RequireOrgAction(svc *Service, action ActionClass, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principalID, err := auth.PrincipalID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": auth.MessageUnauthorized})
			return
		}

		res, err := svc.Evaluate(c.Request.Context(), principalID, c.Param(param), action)
		if err != nil || !res.Decision.Allowed() {
			AbortDenied(c, err)
			return
		}

		c.Set(ginRoleKey, res.Role)
		c.Next()
	}
}

// AbortDenied writes the response for a Deny. err is the error returned with the decision, if any.
func AbortDenied(c *gin.Context, err error) {
	switch {
	case err == nil, errors.Is(err, ErrAccessDenied):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": MessageAccessDenied})
	case errors.Is(err, ErrMalformedIdentifier):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": MessageInvalidIdentifier})
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": MessageInternal})
	}
}

// RoleFromGin returns the role resolved by RequireOrgAction.
func RoleFromGin(c *gin.Context) (Role, bool) {
	v, ok := c.Get(ginRoleKey)
	if !ok {
		return RoleNone, false
	}
	r, ok := v.(Role)
	return r, ok && r.Valid()
}
