package advertiser

import (
	"github.com/smallbiznis/podbudget/internal/advertiser/repository"
	"github.com/smallbiznis/podbudget/internal/advertiser/service"
	"go.uber.org/fx"
)

var Module = fx.Module("advertiser.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
