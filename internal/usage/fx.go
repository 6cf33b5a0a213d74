package usage

import (
	"github.com/droidtel/bss/internal/usage/repository"
	"github.com/droidtel/bss/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
