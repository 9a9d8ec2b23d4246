// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a platform account. Regular users belong to exactly one
// organization; super admins have no organization of their own.
type User struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	Email          string            `gorm:"column:email;not null;uniqueIndex"`
	DisplayName    string            `gorm:"column:display_name;type:text"`
	PasswordHash   *string           `gorm:"type:text"`
	IsSuperAdmin   bool              `gorm:"column:is_super_admin;not null;default:false"`
	OrganizationID *snowflake.ID     `gorm:"column:organization_id;index"`
	ProfileID      *snowflake.ID     `gorm:"column:profile_id;index"`
	LastLoginAt    *time.Time        `gorm:"column:last_login_at"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session. ActiveOrgID tracks the
// organization a super admin is currently acting on; it is nil for regular
// users and for super admins browsing the back office.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	ActiveOrgID      *int64       `gorm:"column:active_org_id"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
