package listing

import (
	"github.com/stayloop/stayloop/internal/listing/repository"
	"github.com/stayloop/stayloop/internal/listing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("listing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
