package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	tenantdomain "github.com/lokera/lokera/internal/tenant/domain"
)

type createOrganizationRequest struct {
	Name         string `json:"name" binding:"required"`
	CountryCode  string `json:"country_code"`
	TimezoneName string `json:"timezone"`
}

// ListOrganizations returns every tenant for the operator console.
func (s *Server) ListOrganizations(c *gin.Context) {
	orgs, err := s.tenantsvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]organizationResponse, 0, len(orgs))
	for i := range orgs {
		out = append(out, toOrganizationResponse(&orgs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"organizations": out})
}

// CreateOrganization provisions a tenant on behalf of a customer. The
// organization still goes through the setup wizard before it is usable.
func (s *Server) CreateOrganization(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	org, err := s.tenantsvc.CreateOrganization(c.Request.Context(), tenantdomain.CreateOrganizationRequest{
		Name:         req.Name,
		CountryCode:  req.CountryCode,
		TimezoneName: req.TimezoneName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"organization": toOrganizationResponse(org)})
}

// UseOrganization pins the super admin's session to one tenant so that
// org-scoped pages and APIs act on it.
func (s *Server) UseOrganization(c *gin.Context) {
	orgID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_organization_id", "invalid organization id"))
		return
	}

	ctx := c.Request.Context()
	org, err := s.directory.GetOrganization(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sess := sessionFrom(c)
	if sess == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	raw := int64(org.ID)
	if err := s.authsvc.SetActiveOrg(ctx, sess.ID, &raw); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": toOrganizationResponse(org)})
}

// ReleaseOrganization clears the session's selected tenant.
func (s *Server) ReleaseOrganization(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if err := s.authsvc.SetActiveOrg(c.Request.Context(), sess.ID, nil); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
