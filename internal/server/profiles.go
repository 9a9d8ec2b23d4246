package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	permdomain "github.com/lokera/lokera/internal/permission/domain"
)

type profileResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OrgID    string `json:"org_id,omitempty"`
	Platform bool   `json:"platform"`
}

type createProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

type upsertPermissionRequest struct {
	ObjectType string `json:"object_type" binding:"required"`
	CanRead    bool   `json:"can_read"`
	CanCreate  bool   `json:"can_create"`
	CanEdit    bool   `json:"can_edit"`
	CanDelete  bool   `json:"can_delete"`
	CanViewAll bool   `json:"can_view_all"`
}

// ListProfiles returns the platform templates plus the caller
// organization's custom profiles.
func (s *Server) ListProfiles(c *gin.Context) {
	orgID, ok := s.callerOrganization(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	profiles, err := s.permRepo.ListProfiles(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]profileResponse, 0, len(profiles))
	for _, profile := range profiles {
		if profile.OrgID != nil && *profile.OrgID != orgID {
			continue
		}
		out = append(out, toProfileResponse(profile))
	}
	c.JSON(http.StatusOK, gin.H{"profiles": out})
}

// CreateProfile adds an organization-scoped custom profile. The reserved
// administrator name cannot be claimed.
func (s *Server) CreateProfile(c *gin.Context) {
	if !s.requireOrganizationAdmin(c) {
		return
	}

	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	if req.Name == permdomain.ProfileSystemAdministrator {
		AbortWithError(c, permdomain.ErrReservedProfile)
		return
	}

	orgID, _ := s.callerOrganization(c)
	profile := permdomain.Profile{
		ID:    s.genID.Generate(),
		OrgID: &orgID,
		Name:  req.Name,
	}
	if err := s.permRepo.CreateProfile(c.Request.Context(), &profile); err != nil {
		AbortWithError(c, err)
		return
	}
	s.permCatalog.Invalidate()
	c.JSON(http.StatusCreated, gin.H{"profile": toProfileResponse(profile)})
}

// UpsertProfilePermission replaces one object-type capability row on a
// profile and invalidates the compiled catalog.
func (s *Server) UpsertProfilePermission(c *gin.Context) {
	if !s.requireOrganizationAdmin(c) {
		return
	}

	profileID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_profile_id", "invalid profile id"))
		return
	}

	var req upsertPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	objectType, err := permdomain.ParseObjectType(req.ObjectType)
	if err != nil {
		AbortWithError(c, newValidationError("object_type", "invalid_object_type", "unknown object type"))
		return
	}
	if req.CanViewAll && !req.CanRead {
		AbortWithError(c, newValidationError("can_view_all", "view_all_requires_read", "view_all requires read"))
		return
	}

	ctx := c.Request.Context()
	profile, err := s.permRepo.FindProfile(ctx, profileID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	orgID, _ := s.callerOrganization(c)
	if profile.OrgID == nil || *profile.OrgID != orgID {
		// Platform templates and foreign profiles are immutable here.
		AbortWithError(c, ErrForbidden)
		return
	}

	row := permdomain.ObjectPermission{
		ID:         s.genID.Generate(),
		ProfileID:  profile.ID,
		ObjectType: string(objectType),
		CanRead:    req.CanRead,
		CanCreate:  req.CanCreate,
		CanEdit:    req.CanEdit,
		CanDelete:  req.CanDelete,
		CanViewAll: req.CanViewAll,
	}
	if err := s.permRepo.UpsertPermission(ctx, &row); err != nil {
		AbortWithError(c, err)
		return
	}
	s.permCatalog.Invalidate()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requireOrganizationAdmin(c *gin.Context) bool {
	isAdmin, err := s.evaluator.IsOrganizationAdmin(c.Request.Context(), principalFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return false
	}
	if !isAdmin {
		AbortWithError(c, ErrForbidden)
		return false
	}
	return true
}

func toProfileResponse(profile permdomain.Profile) profileResponse {
	resp := profileResponse{
		ID:       profile.ID.String(),
		Name:     profile.Name,
		Platform: profile.OrgID == nil,
	}
	if profile.OrgID != nil {
		resp.OrgID = profile.OrgID.String()
	}
	return resp
}
