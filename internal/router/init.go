package router

import (
	"github.com/stackbound/identity-api/internal/application"
	"github.com/stackbound/identity-api/internal/container"
	handlers "github.com/stackbound/identity-api/internal/interface/http"
	"github.com/stackbound/identity-api/internal/router/modules"
)

// InitModules builds the application modules from the container singletons
// and registers them with the router registry. Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	svc := application.NewService(
		container.GetRepo(),
		container.GetJWT(),
		container.GetLogger(),
		cfg.BcryptCost,
	)
	identityHandler := handlers.NewIdentityHandler(svc, container.GetLogger())

	r.Add(modules.NewHealthModule(handlers.NewHealthHandler(cfg)))
	r.Add(modules.NewIdentityModule(identityHandler, container.GetJWT()))
}
