package school

import (
	"github.com/smallbiznis/feeledger/internal/school/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("school.repository",
	fx.Provide(repository.NewRepository),
)
