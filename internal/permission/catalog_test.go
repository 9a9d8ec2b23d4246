package permission

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/permission/domain"
	"github.com/lokera/lokera/internal/permission/repository"
	"github.com/lokera/lokera/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestCatalog(t *testing.T) (*Catalog, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Profile{}, &domain.ObjectPermission{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	holder := config.NewStaticAccessConfigHolder(config.DefaultAccessConfig())
	catalog := NewCatalog(zap.NewNop(), holder, repository.NewRepository(dbConn))
	return catalog, dbConn, node
}

func seedProfile(t *testing.T, dbConn *gorm.DB, node *snowflake.Node, name string) domain.Profile {
	t.Helper()

	profile := domain.Profile{ID: node.Generate(), Name: name}
	require.NoError(t, dbConn.Create(&profile).Error)
	return profile
}

func seedPermission(t *testing.T, dbConn *gorm.DB, node *snowflake.Node, profileID snowflake.ID, row domain.ObjectPermission) {
	t.Helper()

	row.ID = node.Generate()
	row.ProfileID = profileID
	require.NoError(t, dbConn.Create(&row).Error)
}

func TestCatalogAllowed(t *testing.T) {
	catalog, dbConn, node := newTestCatalog(t)
	agent := seedProfile(t, dbConn, node, "Agent")
	seedPermission(t, dbConn, node, agent.ID, domain.ObjectPermission{
		ObjectType: string(domain.ObjectProperty),
		CanRead:    true,
		CanCreate:  true,
	})

	ctx := context.Background()

	allowed, err := catalog.Allowed(ctx, agent.ID, domain.ObjectProperty, domain.ActionRead)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = catalog.Allowed(ctx, agent.ID, domain.ObjectProperty, domain.ActionDelete)
	require.NoError(t, err)
	assert.False(t, allowed)

	// No row for the type at all.
	allowed, err = catalog.Allowed(ctx, agent.ID, domain.ObjectPayment, domain.ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCatalogUnknownProfileDenies(t *testing.T) {
	catalog, _, node := newTestCatalog(t)

	allowed, err := catalog.Allowed(context.Background(), node.Generate(), domain.ObjectProperty, domain.ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCatalogViewAllRequiresRead(t *testing.T) {
	catalog, dbConn, node := newTestCatalog(t)
	broken := seedProfile(t, dbConn, node, "Broken")
	seedPermission(t, dbConn, node, broken.ID, domain.ObjectPermission{
		ObjectType: string(domain.ObjectLease),
		CanRead:    false,
		CanViewAll: true,
	})

	allowed, err := catalog.Allowed(context.Background(), broken.ID, domain.ObjectLease, domain.ActionViewAll)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCatalogInvalidObjectTypeFailsLoad(t *testing.T) {
	catalog, dbConn, node := newTestCatalog(t)
	agent := seedProfile(t, dbConn, node, "Agent")
	seedPermission(t, dbConn, node, agent.ID, domain.ObjectPermission{
		ObjectType: "spaceship",
		CanRead:    true,
	})

	_, err := catalog.Allowed(context.Background(), agent.ID, domain.ObjectProperty, domain.ActionRead)
	assert.Error(t, err)
}

func TestCatalogInvalidate(t *testing.T) {
	catalog, dbConn, node := newTestCatalog(t)
	agent := seedProfile(t, dbConn, node, "Agent")

	ctx := context.Background()

	allowed, err := catalog.Allowed(ctx, agent.ID, domain.ObjectUnit, domain.ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)

	seedPermission(t, dbConn, node, agent.ID, domain.ObjectPermission{
		ObjectType: string(domain.ObjectUnit),
		CanRead:    true,
	})

	// Snapshot still within its TTL.
	allowed, err = catalog.Allowed(ctx, agent.ID, domain.ObjectUnit, domain.ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)

	catalog.Invalidate()

	allowed, err = catalog.Allowed(ctx, agent.ID, domain.ObjectUnit, domain.ActionRead)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIsSystemAdministrator(t *testing.T) {
	catalog, dbConn, node := newTestCatalog(t)
	admin := seedProfile(t, dbConn, node, domain.ProfileSystemAdministrator)
	agent := seedProfile(t, dbConn, node, "Agent")

	ctx := context.Background()

	isAdmin, err := catalog.IsSystemAdministrator(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = catalog.IsSystemAdministrator(ctx, agent.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}
