// Package domain contains persistence models for the tenant service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant account addressable via a unique
// subdomain of the platform's base domain.
type Organization struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Subdomain    *string           `gorm:"type:text;uniqueIndex:ux_organizations_subdomain" json:"subdomain"`
	IsConfigured bool              `gorm:"column:is_configured;not null;default:false" json:"is_configured"`
	CountryCode  string            `gorm:"column:country_code" json:"country_code"`
	TimezoneName string            `gorm:"column:timezone_name" json:"timezone_name"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// SubdomainLabel returns the organization's subdomain or empty.
func (o Organization) SubdomainLabel() string {
	if o.Subdomain == nil {
		return ""
	}
	return *o.Subdomain
}
