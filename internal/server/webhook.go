package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subdomain "github.com/lokera/lokera/internal/subscription/domain"
	subservice "github.com/lokera/lokera/internal/subscription/service"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Webhook-Secret"

type billingWebhookRequest struct {
	OrganizationID   string `json:"organization_id" binding:"required"`
	PlanCode         string `json:"plan_code" binding:"required"`
	Status           string `json:"status" binding:"required"`
	CurrentPeriodEnd string `json:"current_period_end"`
}

// HandleBillingWebhook applies a subscription transition reported by a
// billing provider. Deliveries are authenticated by a shared secret
// header, not by session; an unconfigured secret rejects everything.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	secret := s.cfg.BillingWebhookSecret
	if secret == "" ||
		subtle.ConstantTimeCompare([]byte(c.GetHeader(webhookSecretHeader)), []byte(secret)) != 1 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req billingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	orgID, err := snowflake.ParseString(req.OrganizationID)
	if err != nil {
		AbortWithError(c, newValidationError("organization_id", "invalid_organization_id", "invalid organization id"))
		return
	}
	status, err := subdomain.ParseStatus(req.Status)
	if err != nil {
		AbortWithError(c, newValidationError("status", "invalid_status", "unknown subscription status"))
		return
	}

	var periodEnd *time.Time
	if req.CurrentPeriodEnd != "" {
		parsed, err := time.Parse(time.RFC3339, req.CurrentPeriodEnd)
		if err != nil {
			AbortWithError(c, newValidationError("current_period_end", "invalid_timestamp", "expected RFC 3339"))
			return
		}
		periodEnd = &parsed
	}

	ctx := c.Request.Context()
	provider := c.Param("provider")

	// Provider retries for the same organization must not interleave.
	if s.locker != nil {
		key := "billing:org:" + orgID.String()
		token, ok, err := s.locker.TryLock(ctx, key, 30*time.Second)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !ok {
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrTooManyRequest)
			return
		}
		defer func() {
			if err := s.locker.Unlock(ctx, key, token); err != nil {
				s.log.Warn("billing lock release failed", zap.String("org_id", orgID.String()), zap.Error(err))
			}
		}()
	}

	sub, err := s.billing.ApplyBillingEvent(ctx, subservice.BillingEvent{
		OrgID:            orgID,
		PlanCode:         req.PlanCode,
		Status:           status,
		CurrentPeriodEnd: periodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("billing event applied",
		zap.String("provider", provider),
		zap.String("org_id", orgID.String()),
		zap.String("status", string(sub.Status)),
	)
	c.JSON(http.StatusOK, gin.H{
		"subscription": gin.H{
			"id":     sub.ID.String(),
			"status": string(sub.Status),
		},
	})
}
