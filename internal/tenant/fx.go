package tenant

import (
	"github.com/lokera/lokera/internal/tenant/repository"
	"github.com/lokera/lokera/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant",
	fx.Provide(repository.NewRepository),
	fx.Provide(NewDirectory),
	fx.Provide(NewResolver),
	fx.Provide(func(d *Directory) service.DirectoryInvalidator { return d }),
	fx.Provide(service.NewService),
)
