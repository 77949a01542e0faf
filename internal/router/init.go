package router

import (
	"github.com/halcyonlab/usergate/internal/container"
	handlers "github.com/halcyonlab/usergate/internal/interface/http"
	"github.com/halcyonlab/usergate/internal/router/modules"
)

func buildUserModule() *modules.Module {
	cfg := container.GetConfig()

	handler := handlers.NewUserHandler(
		container.GetStores(),
		container.GetHooks(),
		container.GetSessions(),
		container.GetJWT(),
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
		cfg.SessionTTL,
	)

	return modules.New(
		handler,
		container.GetHooks(),
		container.GetSessions(),
		container.GetJWT(),
		cfg.Routes,
		container.GetRedis(),
	)
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	r.Add(buildUserModule())
}
