// Package domain contains persistence models for plans and plan features.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// FeatureKey is the closed set of plan-gated features. Unknown keys fail
// at catalog load, not silently at request time.
type FeatureKey string

const (
	FeatureExtranet         FeatureKey = "extranet"
	FeatureAccounting       FeatureKey = "accounting"
	FeatureDocuments        FeatureKey = "documents"
	FeatureReports          FeatureKey = "reports"
	FeatureOnlinePayments   FeatureKey = "online_payments"
	FeatureSMSNotifications FeatureKey = "sms_notifications"
)

// FeatureKeys lists every valid feature key.
func FeatureKeys() []FeatureKey {
	return []FeatureKey{
		FeatureExtranet,
		FeatureAccounting,
		FeatureDocuments,
		FeatureReports,
		FeatureOnlinePayments,
		FeatureSMSNotifications,
	}
}

// ParseFeatureKey validates a raw feature key.
func ParseFeatureKey(raw string) (FeatureKey, error) {
	key := FeatureKey(raw)
	for _, known := range FeatureKeys() {
		if key == known {
			return key, nil
		}
	}
	return "", fmt.Errorf("unknown feature key %q", raw)
}

// LimitKey names a numeric plan limit.
type LimitKey string

const (
	LimitLots            LimitKey = "lots"
	LimitUsers           LimitKey = "users"
	LimitExtranetTenants LimitKey = "extranet_tenants"
)

// ParseLimitKey validates a raw limit key.
func ParseLimitKey(raw string) (LimitKey, error) {
	switch key := LimitKey(raw); key {
	case LimitLots, LimitUsers, LimitExtranetTenants:
		return key, nil
	default:
		return "", fmt.Errorf("unknown limit key %q", raw)
	}
}

// Plan is a subscription tier. Nil or negative limits mean unlimited.
type Plan struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	Code                string       `gorm:"type:text;not null;uniqueIndex:ux_plans_code" json:"code"`
	Name                string       `gorm:"type:text;not null" json:"name"`
	LotLimit            *int64       `gorm:"column:lot_limit" json:"lot_limit"`
	UserLimit           *int64       `gorm:"column:user_limit" json:"user_limit"`
	ExtranetTenantLimit *int64       `gorm:"column:extranet_tenant_limit" json:"extranet_tenant_limit"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// PlanFeature enables a named feature for a plan. A feature without a row
// is disabled.
type PlanFeature struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	PlanID     snowflake.ID `gorm:"column:plan_id;not null;index;uniqueIndex:ux_plan_features,priority:1" json:"plan_id"`
	FeatureKey string       `gorm:"column:feature_key;type:text;not null;uniqueIndex:ux_plan_features,priority:2" json:"feature_key"`
	IsEnabled  bool         `gorm:"column:is_enabled;not null;default:false" json:"is_enabled"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PlanFeature) TableName() string { return "plan_features" }
