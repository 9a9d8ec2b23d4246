package subscription

import (
	"github.com/lokera/lokera/internal/subscription/repository"
	"github.com/lokera/lokera/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(repository.NewRepository),
	fx.Provide(NewStatusProvider),
	fx.Provide(func(p *StatusProvider) service.ProviderInvalidator { return p }),
	fx.Provide(service.NewService),
)
