package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/clock"
	plandomain "github.com/lokera/lokera/internal/plan/domain"
	planrepo "github.com/lokera/lokera/internal/plan/repository"
	"github.com/lokera/lokera/internal/subscription/domain"
	"github.com/lokera/lokera/internal/subscription/repository"
	"github.com/lokera/lokera/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeInvalidator struct {
	calls []snowflake.ID
}

func (f *fakeInvalidator) Invalidate(orgID snowflake.ID) {
	f.calls = append(f.calls, orgID)
}

type serviceFixture struct {
	svc         *Service
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	invalidator *fakeInvalidator
}

func newTestService(t *testing.T) *serviceFixture {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&plandomain.Plan{}, &plandomain.PlanFeature{}, &domain.Subscription{},
	))

	node, err := snowflake.NewNode(8)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	invalidator := &fakeInvalidator{}
	svc := NewService(zap.NewNop(), repository.NewRepository(dbConn),
		planrepo.NewRepository(dbConn), invalidator, node, clk)

	return &serviceFixture{
		svc:         svc,
		db:          dbConn,
		node:        node,
		clock:       clk,
		invalidator: invalidator,
	}
}

func (f *serviceFixture) plan(t *testing.T, code string) plandomain.Plan {
	t.Helper()

	p := plandomain.Plan{ID: f.node.Generate(), Code: code, Name: code}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func TestApplyBillingEventCreatesSubscription(t *testing.T) {
	f := newTestService(t)
	f.plan(t, "growth")
	orgID := f.node.Generate()
	periodEnd := f.clock.Now().AddDate(0, 1, 0)

	sub, err := f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:            orgID,
		PlanCode:         "growth",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*sub.CurrentPeriodEnd))
	assert.Equal(t, []snowflake.ID{orgID}, f.invalidator.calls)
}

func TestApplyBillingEventRenewalMovesPeriodEnd(t *testing.T) {
	f := newTestService(t)
	f.plan(t, "growth")
	orgID := f.node.Generate()
	firstEnd := f.clock.Now().AddDate(0, 1, 0)

	first, err := f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:            orgID,
		PlanCode:         "growth",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: &firstEnd,
	})
	require.NoError(t, err)

	// Same plan, one month later: the row is updated in place and the
	// new period end is persisted.
	f.clock.Advance(30 * 24 * time.Hour)
	renewedEnd := firstEnd.AddDate(0, 1, 0)
	renewed, err := f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:            orgID,
		PlanCode:         "growth",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: &renewedEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, renewed.ID)

	var stored domain.Subscription
	require.NoError(t, f.db.First(&stored, "id = ?", first.ID).Error)
	require.NotNil(t, stored.CurrentPeriodEnd)
	assert.True(t, renewedEnd.Equal(*stored.CurrentPeriodEnd))
	assert.True(t, f.clock.Now().Equal(stored.UpdatedAt))
}

func TestApplyBillingEventStatusOnlyKeepsPeriodEnd(t *testing.T) {
	f := newTestService(t)
	f.plan(t, "growth")
	orgID := f.node.Generate()
	periodEnd := f.clock.Now().AddDate(0, 1, 0)

	first, err := f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:            orgID,
		PlanCode:         "growth",
		Status:           domain.SubscriptionStatusActive,
		CurrentPeriodEnd: &periodEnd,
	})
	require.NoError(t, err)

	// A status transition without a period end leaves the stored period
	// untouched.
	_, err = f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:    orgID,
		PlanCode: "growth",
		Status:   domain.SubscriptionStatusPastDue,
	})
	require.NoError(t, err)

	var stored domain.Subscription
	require.NoError(t, f.db.First(&stored, "id = ?", first.ID).Error)
	assert.Equal(t, domain.SubscriptionStatusPastDue, stored.Status)
	require.NotNil(t, stored.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*stored.CurrentPeriodEnd))
}

func TestApplyBillingEventPlanChangeAppendsRow(t *testing.T) {
	f := newTestService(t)
	f.plan(t, "growth")
	f.plan(t, "scale")
	orgID := f.node.Generate()

	first, err := f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:    orgID,
		PlanCode: "growth",
		Status:   domain.SubscriptionStatusActive,
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	upgraded, err := f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:    orgID,
		PlanCode: "scale",
		Status:   domain.SubscriptionStatusActive,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, upgraded.ID)

	var count int64
	require.NoError(t, f.db.Model(&domain.Subscription{}).
		Where("org_id = ?", orgID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestApplyBillingEventUnknownPlan(t *testing.T) {
	f := newTestService(t)
	orgID := f.node.Generate()

	_, err := f.svc.ApplyBillingEvent(context.Background(), BillingEvent{
		OrgID:    orgID,
		PlanCode: "missing",
		Status:   domain.SubscriptionStatusActive,
	})
	assert.ErrorIs(t, err, plandomain.ErrPlanNotFound)
}
