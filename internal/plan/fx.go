package plan

import (
	"github.com/lokera/lokera/internal/plan/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("plan",
	fx.Provide(repository.NewRepository),
	fx.Provide(NewCatalog),
)
