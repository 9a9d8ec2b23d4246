package tenant

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/tenant/domain"
	"github.com/lokera/lokera/internal/tenant/repository"
	"github.com/lokera/lokera/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDirectory(t *testing.T) (*Directory, domain.Repository, *gorm.DB) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Organization{}))

	repo := repository.NewRepository(dbConn)
	holder := config.NewStaticAccessConfigHolder(config.DefaultAccessConfig())
	dir := NewDirectory(zap.NewNop(), config.Config{BaseDomain: "platform.com"}, holder, repo)
	return dir, repo, dbConn
}

var (
	seedNode     *snowflake.Node
	seedNodeOnce sync.Once
	seedNodeErr  error
)

func seedOrg(t *testing.T, repo domain.Repository, name, subdomain string, configured bool) domain.Organization {
	t.Helper()

	// A snowflake node only guarantees unique IDs within a single instance,
	// so share one node across all seed calls.
	seedNodeOnce.Do(func() {
		seedNode, seedNodeErr = snowflake.NewNode(2)
	})
	node, err := seedNode, seedNodeErr
	require.NoError(t, err)

	org := domain.Organization{
		ID:           node.Generate(),
		Name:         name,
		IsConfigured: configured,
	}
	if subdomain != "" {
		org.Subdomain = &subdomain
	}
	require.NoError(t, repo.Create(context.Background(), &org))
	return org
}

func TestDirectoryResolve(t *testing.T) {
	dir, repo, _ := newTestDirectory(t)
	org := seedOrg(t, repo, "Acme Estates", "acme", true)

	tests := []struct {
		name    string
		host    string
		wantOrg bool
		wantErr error
	}{
		{name: "known subdomain", host: "acme.platform.com", wantOrg: true},
		{name: "with port", host: "acme.platform.com:8443", wantOrg: true},
		{name: "www alias", host: "www.acme.platform.com", wantOrg: true},
		{name: "uppercase", host: "ACME.Platform.Com", wantOrg: true},
		{name: "bare base domain", host: "platform.com", wantErr: domain.ErrNoTenant},
		{name: "www base domain", host: "www.platform.com", wantErr: domain.ErrNoTenant},
		{name: "localhost", host: "localhost:3000", wantErr: domain.ErrNoTenant},
		{name: "foreign domain", host: "acme.example.org", wantErr: domain.ErrNoTenant},
		{name: "reserved subdomain", host: "admin.platform.com", wantErr: domain.ErrNoTenant},
		{name: "unknown subdomain", host: "ghost.platform.com", wantErr: domain.ErrTenantNotFound},
		{name: "nested label", host: "a.b.platform.com", wantErr: domain.ErrNoTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dir.Resolve(context.Background(), tt.host)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, tt.wantOrg)
			assert.Equal(t, org.ID, got.ID)
		})
	}
}

func TestDirectoryCacheInvalidation(t *testing.T) {
	dir, repo, dbConn := newTestDirectory(t)
	org := seedOrg(t, repo, "Acme Estates", "acme", false)

	got, err := dir.Resolve(context.Background(), "acme.platform.com")
	require.NoError(t, err)
	assert.False(t, got.IsConfigured)

	require.NoError(t, dbConn.Exec(
		`UPDATE organizations SET is_configured = ? WHERE id = ?`, true, org.ID,
	).Error)

	// Cached row still served until invalidated.
	got, err = dir.Resolve(context.Background(), "acme.platform.com")
	require.NoError(t, err)
	assert.False(t, got.IsConfigured)

	dir.Invalidate(*got)

	got, err = dir.Resolve(context.Background(), "acme.platform.com")
	require.NoError(t, err)
	assert.True(t, got.IsConfigured)
}

func TestDirectoryGetOrganization(t *testing.T) {
	dir, repo, _ := newTestDirectory(t)
	org := seedOrg(t, repo, "Acme Estates", "acme", true)

	got, err := dir.GetOrganization(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.SubdomainLabel())

	_, err = dir.GetOrganization(context.Background(), org.ID+1)
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}
