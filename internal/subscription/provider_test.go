package subscription

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/subscription/domain"
	"github.com/lokera/lokera/internal/subscription/repository"
	"github.com/lokera/lokera/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestProvider(t *testing.T) (*StatusProvider, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Subscription{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	holder := config.NewStaticAccessConfigHolder(config.DefaultAccessConfig())
	provider := NewStatusProvider(zap.NewNop(), holder, repository.NewRepository(dbConn))
	return provider, dbConn, node
}

func seedSubscription(t *testing.T, dbConn *gorm.DB, node *snowflake.Node, orgID snowflake.ID, status domain.SubscriptionStatus) domain.Subscription {
	t.Helper()

	sub := domain.Subscription{
		ID:     node.Generate(),
		OrgID:  orgID,
		PlanID: node.Generate(),
		Status: status,
	}
	require.NoError(t, dbConn.Create(&sub).Error)
	return sub
}

func TestOperationalStatuses(t *testing.T) {
	tests := []struct {
		status      domain.SubscriptionStatus
		operational bool
	}{
		{domain.SubscriptionStatusActive, true},
		{domain.SubscriptionStatusTrialing, true},
		{domain.SubscriptionStatusPending, false},
		{domain.SubscriptionStatusPastDue, false},
		{domain.SubscriptionStatusCanceled, false},
		{domain.SubscriptionStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			provider, dbConn, node := newTestProvider(t)
			orgID := node.Generate()
			seedSubscription(t, dbConn, node, orgID, tt.status)

			operational, err := provider.Operational(context.Background(), orgID)
			require.NoError(t, err)
			assert.Equal(t, tt.operational, operational)
		})
	}
}

func TestNoSubscriptionIsNotOperational(t *testing.T) {
	provider, _, node := newTestProvider(t)

	sub, err := provider.CurrentForOrganization(context.Background(), node.Generate())
	require.NoError(t, err)
	assert.Nil(t, sub)

	operational, err := provider.Operational(context.Background(), node.Generate())
	require.NoError(t, err)
	assert.False(t, operational)
}

func TestLatestRowIsAuthoritative(t *testing.T) {
	provider, dbConn, node := newTestProvider(t)
	orgID := node.Generate()

	seedSubscription(t, dbConn, node, orgID, domain.SubscriptionStatusCanceled)
	latest := seedSubscription(t, dbConn, node, orgID, domain.SubscriptionStatusActive)

	sub, err := provider.CurrentForOrganization(context.Background(), orgID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, latest.ID, sub.ID)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestInvalidateDropsStaleStatus(t *testing.T) {
	provider, dbConn, node := newTestProvider(t)
	orgID := node.Generate()
	sub := seedSubscription(t, dbConn, node, orgID, domain.SubscriptionStatusActive)

	operational, err := provider.Operational(context.Background(), orgID)
	require.NoError(t, err)
	assert.True(t, operational)

	require.NoError(t, dbConn.Model(&domain.Subscription{}).
		Where("id = ?", sub.ID).
		Update("status", domain.SubscriptionStatusCanceled).Error)

	// Cached verdict survives until the webhook invalidates it.
	operational, err = provider.Operational(context.Background(), orgID)
	require.NoError(t, err)
	assert.True(t, operational)

	provider.Invalidate(orgID)

	operational, err = provider.Operational(context.Background(), orgID)
	require.NoError(t, err)
	assert.False(t, operational)
}
