package permission

import (
	"github.com/lokera/lokera/internal/permission/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("permission",
	fx.Provide(repository.NewRepository),
	fx.Provide(NewCatalog),
	fx.Provide(NewEvaluator),
)
