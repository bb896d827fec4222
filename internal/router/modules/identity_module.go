package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stackbound/identity-api/internal/container"
	handlers "github.com/stackbound/identity-api/internal/interface/http"
	"github.com/stackbound/identity-api/internal/interface/middleware"
	"github.com/stackbound/identity-api/pkg/helpers"
)

// IdentityModule wires identity HTTP handlers and bearer middleware into routes.
// Public: POST /api/auth/register, POST /api/auth/login
// Protected: GET/PUT /api/auth/profile, GET /api/auth/verify, POST /api/auth/logout
type IdentityModule struct {
	Handler *handlers.IdentityHandler
	JWT     *helpers.JWTManager
}

func NewIdentityModule(h *handlers.IdentityHandler, jwt *helpers.JWTManager) *IdentityModule {
	return &IdentityModule{Handler: h, JWT: jwt}
}

func (m *IdentityModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	// Public with tighter per-route rate limits
	registerLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIPAndPath())
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIPAndPath())

	auth := rg.Group("/auth")
	auth.POST("/register", registerLimiter, m.Handler.Register)
	auth.POST("/login", loginLimiter, m.Handler.Login)

	// Protected
	protected := auth.Group("/")
	protected.Use(middleware.BearerAuth(m.JWT))
	protected.Use(middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByIdentity()))
	{
		protected.GET("/profile", m.Handler.GetProfile)
		protected.PUT("/profile", m.Handler.UpdateProfile)
		protected.GET("/verify", m.Handler.Verify)
		protected.POST("/logout", m.Handler.Logout)
	}
}
