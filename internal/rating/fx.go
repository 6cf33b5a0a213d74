package rating

import (
	"github.com/droidtel/bss/internal/rating/repository"
	"github.com/droidtel/bss/internal/rating/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rating.service",
	fx.Provide(repository.NewRuleRepository),
	fx.Provide(service.NewService),
)
