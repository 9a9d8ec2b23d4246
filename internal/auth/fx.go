package auth

import (
	"github.com/lokera/lokera/internal/auth/repository"
	"github.com/lokera/lokera/internal/auth/service"
	"github.com/lokera/lokera/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	session.Module,
)
