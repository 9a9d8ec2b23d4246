package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ErrNoSubscription means the organization has no subscription row at all.
var ErrNoSubscription = errors.New("no subscription")

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	// LatestByOrganization returns the authoritative current subscription:
	// the newest row by creation order.
	LatestByOrganization(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	// UpdateStatus records a status transition on an existing row. A
	// non-nil currentPeriodEnd moves the period end as well (renewals);
	// nil leaves the stored period untouched.
	UpdateStatus(ctx context.Context, id snowflake.ID, status SubscriptionStatus, currentPeriodEnd *time.Time, updatedAt time.Time) error
}
