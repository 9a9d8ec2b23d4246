package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lokera/lokera/internal/permission"
	permdomain "github.com/lokera/lokera/internal/permission/domain"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
)

// Authorize answers "may the caller perform action on object type". It
// is the HTTP face of the permission evaluator; page components and API
// clients call it instead of reading permission tables.
func (s *Server) Authorize(c *gin.Context) {
	objectType, err := permdomain.ParseObjectType(c.Query("object_type"))
	if err != nil {
		AbortWithError(c, newValidationError("object_type", "invalid_object_type", "unknown object type"))
		return
	}
	action, err := permdomain.ParseAction(c.Query("action"))
	if err != nil {
		AbortWithError(c, newValidationError("action", "invalid_action", "unknown action"))
		return
	}

	allowed, err := s.evaluator.CanAccessObject(c.Request.Context(), principalFrom(c), objectType, action)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"object_type": string(objectType),
		"action":      string(action),
		"allowed":     allowed,
	})
}

// FeatureAccess reports whether the caller's organization plan enables
// the feature and, when object_type/action are supplied, whether the
// caller also holds that capability. Both axes must pass.
func (s *Server) FeatureAccess(c *gin.Context) {
	key, err := plandomain.ParseFeatureKey(c.Param("key"))
	if err != nil {
		AbortWithError(c, newValidationError("key", "invalid_feature_key", "unknown feature key"))
		return
	}

	var capability *permission.Capability
	if rawType := c.Query("object_type"); rawType != "" {
		objectType, err := permdomain.ParseObjectType(rawType)
		if err != nil {
			AbortWithError(c, newValidationError("object_type", "invalid_object_type", "unknown object type"))
			return
		}
		action, err := permdomain.ParseAction(c.Query("action"))
		if err != nil {
			AbortWithError(c, newValidationError("action", "invalid_action", "unknown action"))
			return
		}
		capability = &permission.Capability{Object: objectType, Action: action}
	}

	orgID, ok := s.callerOrganization(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	allowed, err := s.evaluator.CanAccessFeature(c.Request.Context(), principalFrom(c), orgID, key, capability)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feature": string(key),
		"allowed": allowed,
	})
}

// PlanLimit returns the numeric limit for the caller's plan.
func (s *Server) PlanLimit(c *gin.Context) {
	key, err := plandomain.ParseLimitKey(c.Param("key"))
	if err != nil {
		AbortWithError(c, newValidationError("key", "invalid_limit_key", "unknown limit key"))
		return
	}

	orgID, ok := s.callerOrganization(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	limit, err := s.evaluator.LimitFor(c.Request.Context(), orgID, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if limit.Unlimited {
		c.JSON(http.StatusOK, gin.H{"limit": string(key), "unlimited": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": string(key), "unlimited": false, "value": limit.Value})
}

// callerOrganization resolves the organization the request acts on: the
// principal's own, or the selected one for an impersonating super admin.
func (s *Server) callerOrganization(c *gin.Context) (snowflake.ID, bool) {
	principal := principalFrom(c)
	if principal.OrganizationID != nil {
		return *principal.OrganizationID, true
	}
	if principal.IsSuperAdmin {
		if active := activeOrgFrom(c); active != nil {
			return *active, true
		}
	}
	return 0, false
}
