package httpapi

import (
	"net/http"

	"tenant-platform/internal/auth"
	"tenant-platform/internal/membership"
	"tenant-platform/internal/rbac"
	"tenant-platform/internal/records"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call internal services, return JSON. Authorization happens in
// the services so that record routes check the organization stored on the record.
type Handlers struct {
	Members *membership.Service
	Records *records.Service
}

func principal(c *gin.Context) (string, bool) {
	p, err := auth.PrincipalID(c.Request.Context())
	if err != nil {
		abortError(c, err)
		return "", false
	}
	return p, true
}

// --- Organizations ---

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type organizationResponse struct {
	Organization membership.Organization `json:"organization"`
	Membership   membership.Membership   `json:"membership"`
}

// CreateOrganization makes the caller the owner of a new organization.
func (h Handlers) CreateOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": messageInvalidRequest})
		return
	}
	org, m, err := h.Members.CreateOrganization(c.Request.Context(), p, req.Name)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, organizationResponse{Organization: org, Membership: m})
}

// GetRole returns the caller's role. Mounted behind rbac.RequireOrgAction(read).
func (h Handlers) GetRole(c *gin.Context) {
	role, ok := rbac.RoleFromGin(c)
	if !ok {
		abortError(c, rbac.ErrAccessDenied)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization_id": c.Param("org_id"), "role": role})
}

// --- Members ---

type memberRequest struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h Handlers) ListMembers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	members, err := h.Members.List(c.Request.Context(), p, c.Param("org_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h Handlers) AddMember(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": messageInvalidRequest})
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		// The service rejects RoleNone after the access check.
		role = rbac.RoleNone
	}
	m, err := h.Members.AddMember(c.Request.Context(), p, c.Param("org_id"), req.PrincipalID, role)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h Handlers) ChangeMemberRole(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": messageInvalidRequest})
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		role = rbac.RoleNone
	}
	m, err := h.Members.ChangeRole(c.Request.Context(), p, c.Param("org_id"), c.Param("principal_id"), role)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h Handlers) DeactivateMember(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	m, err := h.Members.Deactivate(c.Request.Context(), p, c.Param("org_id"), c.Param("principal_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// --- Customers ---

func (h Handlers) ListCustomers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Records.ListCustomers(c.Request.Context(), p, c.Param("org_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": out})
}

func (h Handlers) CreateCustomer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req records.CustomerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": messageInvalidRequest})
		return
	}
	out, err := h.Records.CreateCustomer(c.Request.Context(), p, c.Param("org_id"), req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h Handlers) GetCustomer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Records.GetCustomer(c.Request.Context(), p, c.Param("customer_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) UpdateCustomer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.Records.AuthorizeCustomerWrite(c.Request.Context(), p, c.Param("customer_id")); err != nil {
		abortError(c, err)
		return
	}
	var req records.CustomerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": messageInvalidRequest})
		return
	}
	out, err := h.Records.UpdateCustomer(c.Request.Context(), p, c.Param("customer_id"), req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DeleteCustomer(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.Records.DeleteCustomer(c.Request.Context(), p, c.Param("customer_id")); err != nil {
		abortError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Species ---

func (h Handlers) ListSpecies(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	out, err := h.Records.ListSpecies(c.Request.Context(), p, c.Param("org_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"species": out})
}

func (h Handlers) CreateSpecies(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req records.SpeciesInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": messageInvalidRequest})
		return
	}
	out, err := h.Records.CreateSpecies(c.Request.Context(), p, c.Param("org_id"), req)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
