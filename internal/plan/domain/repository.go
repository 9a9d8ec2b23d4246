package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrPlanNotFound = errors.New("plan not found")

type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Plan, error)
	FindByCode(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
	ListFeatures(ctx context.Context, planID snowflake.ID) ([]PlanFeature, error)
}
