// Package domain contains the permission catalog models: profiles and
// their per-object-type capability rows.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ProfileSystemAdministrator is the reserved profile name granting the
// organization-level administrator classification.
const ProfileSystemAdministrator = "System Administrator"

// ObjectType is the closed set of business object types guarded by the
// permission boundary. Free-form strings are rejected at catalog load.
type ObjectType string

const (
	ObjectOrganization ObjectType = "organization"
	ObjectProperty     ObjectType = "property"
	ObjectUnit         ObjectType = "unit"
	ObjectTenant       ObjectType = "tenant"
	ObjectLease        ObjectType = "lease"
	ObjectPayment      ObjectType = "payment"
	ObjectAccounting   ObjectType = "accounting"
	ObjectDocument     ObjectType = "document"
	ObjectReport       ObjectType = "report"
)

// ObjectTypes lists every valid object type.
func ObjectTypes() []ObjectType {
	return []ObjectType{
		ObjectOrganization,
		ObjectProperty,
		ObjectUnit,
		ObjectTenant,
		ObjectLease,
		ObjectPayment,
		ObjectAccounting,
		ObjectDocument,
		ObjectReport,
	}
}

// ParseObjectType validates a raw object type.
func ParseObjectType(raw string) (ObjectType, error) {
	t := ObjectType(raw)
	for _, known := range ObjectTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown object type %q", raw)
}

// Action is a capability on an object type.
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionViewAll Action = "view_all"
)

// ParseAction validates a raw action.
func ParseAction(raw string) (Action, error) {
	switch a := Action(raw); a {
	case ActionRead, ActionCreate, ActionEdit, ActionDelete, ActionViewAll:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", raw)
	}
}

// Profile is a named permission template. OrgID is nil for the platform
// templates shared by every organization and set for org-specific custom
// profiles.
type Profile struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID     *snowflake.ID `gorm:"column:org_id;index" json:"org_id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

// ObjectPermission is one profile's capability row for one object type.
// Absence of a row denies every action on that type.
type ObjectPermission struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ProfileID  snowflake.ID `gorm:"column:profile_id;not null;index;uniqueIndex:ux_object_permissions,priority:1" json:"profile_id"`
	ObjectType string       `gorm:"column:object_type;type:text;not null;uniqueIndex:ux_object_permissions,priority:2" json:"object_type"`
	CanRead    bool         `gorm:"column:can_read;not null;default:false" json:"can_read"`
	CanCreate  bool         `gorm:"column:can_create;not null;default:false" json:"can_create"`
	CanEdit    bool         `gorm:"column:can_edit;not null;default:false" json:"can_edit"`
	CanDelete  bool         `gorm:"column:can_delete;not null;default:false" json:"can_delete"`
	CanViewAll bool         `gorm:"column:can_view_all;not null;default:false" json:"can_view_all"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ObjectPermission) TableName() string { return "object_permissions" }

// Allows reports whether the row grants the action.
func (p ObjectPermission) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionCreate:
		return p.CanCreate
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	case ActionViewAll:
		return p.CanViewAll
	default:
		return false
	}
}
