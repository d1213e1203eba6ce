package auth

import (
	"github.com/smallbiznis/podbudget/internal/auth/service"
	"github.com/smallbiznis/podbudget/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(service.NewVerifier),
	fx.Provide(session.NewManager),
)
