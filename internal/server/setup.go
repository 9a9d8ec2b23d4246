package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	permdomain "github.com/lokera/lokera/internal/permission/domain"
	tenantdomain "github.com/lokera/lokera/internal/tenant/domain"
	"go.uber.org/zap"
)

type completeSetupRequest struct {
	Name         string `json:"name" binding:"required"`
	Subdomain    string `json:"subdomain" binding:"required"`
	CountryCode  string `json:"country_code"`
	TimezoneName string `json:"timezone"`
}

type organizationResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Subdomain    string `json:"subdomain,omitempty"`
	IsConfigured bool   `json:"is_configured"`
	CountryCode  string `json:"country_code,omitempty"`
}

// CompleteSetup runs the onboarding wizard end to end: it creates the
// principal's organization on first call, assigns the administrator
// profile, and claims the subdomain. A configured organization cannot
// pass through here again.
func (s *Server) CompleteSetup(c *gin.Context) {
	principal := principalFrom(c)
	if principal.IsSuperAdmin {
		// Super admins operate the platform, not a tenant.
		AbortWithError(c, ErrForbidden)
		return
	}

	var req completeSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	ctx := c.Request.Context()
	orgID := principal.OrganizationID
	if orgID == nil {
		org, err := s.tenantsvc.CreateOrganization(ctx, tenantdomain.CreateOrganizationRequest{
			Name:         req.Name,
			CountryCode:  req.CountryCode,
			TimezoneName: req.TimezoneName,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		fields := map[string]any{"organization_id": org.ID}
		if adminProfile, err := s.systemAdministratorProfile(ctx); err == nil {
			fields["profile_id"] = adminProfile.ID
		} else {
			s.log.Error("administrator profile missing", append(logFields(c), zap.Error(err))...)
		}
		if err := s.users.UpdateFields(ctx, principal.ID, fields); err != nil {
			AbortWithError(c, err)
			return
		}
		orgID = &org.ID
	}

	org, err := s.tenantsvc.CompleteSetup(ctx, tenantdomain.CompleteSetupRequest{
		OrganizationID: *orgID,
		Subdomain:      req.Subdomain,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": toOrganizationResponse(org),
		"redirect":     s.resolver.OrgURL(org, "/dashboard"),
	})
}

func (s *Server) MyOrganization(c *gin.Context) {
	principal := principalFrom(c)
	orgID := principal.OrganizationID
	if orgID == nil {
		if active := activeOrgFrom(c); principal.IsSuperAdmin && active != nil {
			orgID = active
		} else {
			AbortWithError(c, ErrNotFound)
			return
		}
	}

	org, err := s.directory.GetOrganization(c.Request.Context(), *orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": toOrganizationResponse(org)})
}

// systemAdministratorProfile returns the platform administrator template.
func (s *Server) systemAdministratorProfile(ctx context.Context) (*permdomain.Profile, error) {
	profiles, err := s.permRepo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].OrgID == nil && profiles[i].Name == permdomain.ProfileSystemAdministrator {
			return &profiles[i], nil
		}
	}
	return nil, permdomain.ErrProfileNotFound
}

func toOrganizationResponse(org *tenantdomain.Organization) organizationResponse {
	return organizationResponse{
		ID:           org.ID.String(),
		Name:         org.Name,
		Subdomain:    org.SubdomainLabel(),
		IsConfigured: org.IsConfigured,
		CountryCode:  org.CountryCode,
	}
}
