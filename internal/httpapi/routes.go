package httpapi

import (
	"tenant-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the organization-scoped API on v1. v1 must already require an access token.
//
// Routes with a request body authorize before it is decoded, so a caller without access gets 403
// whatever it sends. The services repeat the check.
func (h Handlers) Register(v1 *gin.RouterGroup, access *rbac.Service) {
	v1.POST("/organizations", h.CreateOrganization)

	requireOrg := func(action rbac.ActionClass) gin.HandlerFunc {
		return rbac.RequireOrgAction(access, action, "org_id")
	}

	org := v1.Group("/organizations/:org_id")
	{
		org.GET("/role", requireOrg(rbac.ActionRead), h.GetRole)

		org.GET("/members", h.ListMembers)
		org.POST("/members", requireOrg(rbac.ActionAdminWrite), h.AddMember)
		org.PATCH("/members/:principal_id", requireOrg(rbac.ActionAdminWrite), h.ChangeMemberRole)
		org.DELETE("/members/:principal_id", h.DeactivateMember)

		org.GET("/customers", h.ListCustomers)
		org.POST("/customers", requireOrg(rbac.ActionWrite), h.CreateCustomer)

		org.GET("/species", h.ListSpecies)
		org.POST("/species", requireOrg(rbac.ActionAdminWrite), h.CreateSpecies)
	}

	// Addressed by record id; authorized against the organization stored on the record.
	customers := v1.Group("/customers")
	{
		customers.GET("/:customer_id", h.GetCustomer)
		customers.PUT("/:customer_id", h.UpdateCustomer)
		customers.DELETE("/:customer_id", h.DeleteCustomer)
	}
}
