package migration

import (
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	"github.com/lokera/lokera/internal/config"
	permdomain "github.com/lokera/lokera/internal/permission/domain"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
	"github.com/lokera/lokera/internal/seed"
	subdomain "github.com/lokera/lokera/internal/subscription/domain"
	tenantdomain "github.com/lokera/lokera/internal/tenant/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Non-postgres deployments (sqlite for local development) rely
			// on the model definitions instead of the SQL migrations.
			if err := conn.AutoMigrate(
				&tenantdomain.Organization{},
				&permdomain.Profile{},
				&permdomain.ObjectPermission{},
				&authdomain.User{},
				&authdomain.Session{},
				&plandomain.Plan{},
				&plandomain.PlanFeature{},
				&subdomain.Subscription{},
			); err != nil {
				return err
			}
		}
		return seed.Ensure(conn)
	}),
)
