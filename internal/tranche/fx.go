package tranche

import (
	"github.com/smallbiznis/feeledger/internal/tranche/repository"
	"github.com/smallbiznis/feeledger/internal/tranche/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tranche.catalog",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewCatalog),
)
