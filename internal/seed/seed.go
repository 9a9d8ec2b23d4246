// Package seed bootstraps a fresh installation: subscription plans,
// the platform profile templates, and the initial super admin.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	"github.com/lokera/lokera/internal/auth/password"
	permdomain "github.com/lokera/lokera/internal/permission/domain"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@lokera.app"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Platform Admin"

	unlimited = int64(-1)
)

type planSpec struct {
	code     string
	name     string
	lots     int64
	users    int64
	extranet int64
	features []plandomain.FeatureKey
}

var defaultPlans = []planSpec{
	{
		code: "starter", name: "Starter",
		lots: 25, users: 3, extranet: 10,
		features: []plandomain.FeatureKey{
			plandomain.FeatureDocuments,
		},
	},
	{
		code: "growth", name: "Growth",
		lots: 200, users: 15, extranet: 100,
		features: []plandomain.FeatureKey{
			plandomain.FeatureExtranet,
			plandomain.FeatureAccounting,
			plandomain.FeatureDocuments,
			plandomain.FeatureReports,
		},
	},
	{
		code: "scale", name: "Scale",
		lots: unlimited, users: unlimited, extranet: unlimited,
		features: plandomain.FeatureKeys(),
	},
}

type permSpec struct {
	objectType permdomain.ObjectType
	read       bool
	create     bool
	edit       bool
	del        bool
	viewAll    bool
}

// Ensure is idempotent: existing rows are left untouched so operators
// can customize plans and profiles after first boot.
func Ensure(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePlans(ctx, tx, node); err != nil {
			return err
		}
		if err := ensureProfiles(ctx, tx, node); err != nil {
			return err
		}
		return ensureSuperAdmin(ctx, tx, node)
	})
}

func ensurePlans(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	for _, spec := range defaultPlans {
		var existing plandomain.Plan
		err := tx.WithContext(ctx).Where("code = ?", spec.code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		lots, users, extranet := spec.lots, spec.users, spec.extranet
		p := plandomain.Plan{
			ID:                  node.Generate(),
			Code:                spec.code,
			Name:                spec.name,
			LotLimit:            &lots,
			UserLimit:           &users,
			ExtranetTenantLimit: &extranet,
		}
		if err := tx.WithContext(ctx).Create(&p).Error; err != nil {
			return err
		}
		for _, key := range spec.features {
			feature := plandomain.PlanFeature{
				ID:         node.Generate(),
				PlanID:     p.ID,
				FeatureKey: string(key),
				IsEnabled:  true,
			}
			if err := tx.WithContext(ctx).Create(&feature).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureProfiles(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	templates := map[string][]permSpec{
		permdomain.ProfileSystemAdministrator: adminPermissions(),
		"Agent": {
			{objectType: permdomain.ObjectProperty, read: true, create: true, edit: true},
			{objectType: permdomain.ObjectUnit, read: true, create: true, edit: true},
			{objectType: permdomain.ObjectTenant, read: true, create: true, edit: true},
			{objectType: permdomain.ObjectLease, read: true, create: true, edit: true},
			{objectType: permdomain.ObjectPayment, read: true},
			{objectType: permdomain.ObjectDocument, read: true, create: true},
		},
		"Accountant": {
			{objectType: permdomain.ObjectAccounting, read: true, create: true, edit: true, viewAll: true},
			{objectType: permdomain.ObjectPayment, read: true, viewAll: true},
			{objectType: permdomain.ObjectReport, read: true, viewAll: true},
			{objectType: permdomain.ObjectLease, read: true},
		},
	}

	for name, perms := range templates {
		var existing permdomain.Profile
		err := tx.WithContext(ctx).
			Where("name = ? AND org_id IS NULL", name).
			First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		profile := permdomain.Profile{ID: node.Generate(), Name: name}
		if err := tx.WithContext(ctx).Create(&profile).Error; err != nil {
			return err
		}
		for _, spec := range perms {
			row := permdomain.ObjectPermission{
				ID:         node.Generate(),
				ProfileID:  profile.ID,
				ObjectType: string(spec.objectType),
				CanRead:    spec.read,
				CanCreate:  spec.create,
				CanEdit:    spec.edit,
				CanDelete:  spec.del,
				CanViewAll: spec.viewAll,
			}
			if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func adminPermissions() []permSpec {
	perms := make([]permSpec, 0, len(permdomain.ObjectTypes()))
	for _, objectType := range permdomain.ObjectTypes() {
		perms = append(perms, permSpec{
			objectType: objectType,
			read:       true, create: true, edit: true, del: true, viewAll: true,
		})
	}
	return perms
}

func ensureSuperAdmin(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var existing authdomain.User
	err := tx.WithContext(ctx).Where("is_super_admin = ?", true).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := password.Hash(defaultAdminPassword)
	if err != nil {
		return err
	}
	user := authdomain.User{
		ID:           node.Generate(),
		Email:        defaultAdminEmail,
		DisplayName:  defaultAdminDisplay,
		PasswordHash: &hashed,
		IsSuperAdmin: true,
	}
	return tx.WithContext(ctx).Create(&user).Error
}
