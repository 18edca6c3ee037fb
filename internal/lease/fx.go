package lease

import (
	"github.com/stayloop/stayloop/internal/lease/repository"
	"github.com/stayloop/stayloop/internal/lease/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lease.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
