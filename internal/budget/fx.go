package budget

import (
	"github.com/smallbiznis/podbudget/internal/budget/repository"
	"github.com/smallbiznis/podbudget/internal/budget/rollup"
	"github.com/smallbiznis/podbudget/internal/budget/report"
	"github.com/smallbiznis/podbudget/internal/budget/service"
	"go.uber.org/fx"
)

var Module = fx.Module("budget.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(rollup.NewLoader),
	fx.Provide(report.New),
)
