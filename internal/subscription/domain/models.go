// Package domain contains persistence models for organization subscriptions.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusRefunded SubscriptionStatus = "refunded"
)

// ParseStatus validates a raw subscription status.
func ParseStatus(raw string) (SubscriptionStatus, error) {
	switch status := SubscriptionStatus(raw); status {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPending,
		SubscriptionStatusPastDue, SubscriptionStatusCanceled, SubscriptionStatusRefunded:
		return status, nil
	default:
		return "", fmt.Errorf("unknown subscription status %q", raw)
	}
}

// Operational reports whether the status unlocks the application. Only
// active and trialing subscriptions do.
func (s SubscriptionStatus) Operational() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Subscription ties an organization to a plan. The latest row by creation
// order is the organization's current subscription.
type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID       `gorm:"column:org_id;not null;index" json:"org_id"`
	PlanID           snowflake.ID       `gorm:"column:plan_id;not null;index" json:"plan_id"`
	Status           SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	CurrentPeriodEnd *time.Time         `gorm:"column:current_period_end" json:"current_period_end"`
	Metadata         datatypes.JSONMap  `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
