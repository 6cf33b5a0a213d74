package billingcycle

import (
	"github.com/droidtel/bss/internal/billingcycle/repository"
	"github.com/droidtel/bss/internal/billingcycle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingcycle.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
