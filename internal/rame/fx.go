package rame

import (
	"github.com/smallbiznis/feeledger/internal/rame/repository"
	"github.com/smallbiznis/feeledger/internal/rame/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rame.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
