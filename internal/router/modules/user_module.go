package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/halcyonlab/usergate/config"
	"github.com/halcyonlab/usergate/internal/hooks"
	handlers "github.com/halcyonlab/usergate/internal/interface/http"
	"github.com/halcyonlab/usergate/internal/interface/middleware"
	"github.com/halcyonlab/usergate/internal/session"
	"github.com/halcyonlab/usergate/pkg/helpers"
)

// Module wires the user routes. Public: signup, login, list, search, getUser.
// Protected: logout, updateUser, deleteUser. Every route runs its
// request-phase hook chain before the handler; paths come from the
// configurable route table.

type Module struct {
	Handler  *handlers.UserHandler
	Hooks    *hooks.Registry
	Sessions session.Store
	JWT      *helpers.JWTManager
	Routes   config.RouteTable
	RDB      *redis.Client // nil disables rate limiting
}

func New(h *handlers.UserHandler, hookReg *hooks.Registry, sessions session.Store, jwt *helpers.JWTManager, routes config.RouteTable, rdb *redis.Client) *Module {
	return &Module{Handler: h, Hooks: hookReg, Sessions: sessions, JWT: jwt, Routes: routes, RDB: rdb}
}

func (m *Module) Register(rg *gin.RouterGroup) {
	hook := func(route string) gin.HandlerFunc {
		return middleware.RouteHooks(m.Hooks, route)
	}

	// Public with rate limiting on login
	loginLimiter := middleware.RateLimit(m.RDB, 10, time.Minute, middleware.KeyByIP(), nil) // 10 req/min per IP
	signupLimiter := middleware.RateLimit(m.RDB, 30, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())

	rg.POST(m.Routes.Signup, signupLimiter, hook("signup"), m.Handler.Signup)
	rg.POST(m.Routes.Login, loginLimiter, hook("login"), m.Handler.Login)
	rg.GET(m.Routes.List, hook("list"), m.Handler.List)
	rg.GET(m.Routes.Search, hook("search"), m.Handler.Search)
	rg.GET(m.Routes.GetUser+"/:username", hook("getUser"), m.Handler.GetUser)

	// Protected
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Sessions, m.JWT))
	if m.RDB != nil {
		auth.Use(middleware.RateLimit(m.RDB, 120, time.Minute, middleware.KeyByUserID(), nil))
	}
	{
		auth.GET(m.Routes.Logout, hook("logout"), m.Handler.Logout)
		auth.PUT(m.Routes.UpdateUser, hook("updateUser"), m.Handler.UpdateUser)
		auth.DELETE(m.Routes.DeleteUser+"/:userId", hook("deleteUser"), m.Handler.DeleteUser)
	}
}
