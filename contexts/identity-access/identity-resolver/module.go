package identityresolver

import (
	"log/slog"

	"pollwarden/contexts/identity-access/identity-resolver/application"
)

type Module struct {
	Resolver application.Resolver
}

func NewModule(salt string, logger *slog.Logger) Module {
	return Module{
		Resolver: application.Resolver{
			Salt:   salt,
			Logger: logger,
		},
	}
}
