package migration

import (
	"context"

	orgdomain "github.com/smallbiznis/podbudget/internal/organization/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("migrations",
	fx.Provide(
		NewProvisioner,
		func(p *Provisioner) orgdomain.Provisioner { return p },
	),
)

// RunOnStart migrates every schema before the application starts serving.
var RunOnStart = fx.Invoke(func(p *Provisioner) error {
	return p.MigrateAll(context.Background())
})
