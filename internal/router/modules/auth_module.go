package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/swastha-auth/internal/domain/repository"
	handlers "github.com/oksasatya/swastha-auth/internal/interface/http"
	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
)

// AuthModule wires credential routes.
// Public: POST /api/register, POST /api/login,
// POST /api/password/forgot, POST /api/password/reset/:token
// Protected: POST /api/logout, PUT /api/password
type AuthModule struct {
	Handler  *handlers.AuthHandler
	JWT      *helpers.JWTManager
	Sessions repository.SessionRepository
	Limits   RouteLimits
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager, sessions repository.SessionRepository, limits RouteLimits) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt, Sessions: sessions, Limits: limits}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Login is throttled inside the service (fail closed); the others here.
	registerLimiter := m.Limits.Per("register", 10, time.Hour, middleware.KeyByIPAndPath())
	forgotLimiter := m.Limits.Per("forgot", 5, 10*time.Minute, middleware.KeyByIPAndPath())
	resetLimiter := m.Limits.Per("reset", 10, 10*time.Minute, middleware.KeyByIPAndPath())

	rg.POST("/register", registerLimiter, m.Handler.Register)
	rg.POST("/login", m.Handler.Login)
	rg.POST("/password/forgot", forgotLimiter, m.Handler.ForgotPassword)
	rg.POST("/password/reset/:token", resetLimiter, m.Handler.ResetPassword)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT, m.Sessions))
	auth.Use(m.Limits.Per("auth", 30, time.Minute, middleware.KeyByUserID()))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.PUT("/password", m.Handler.ChangePassword)
	}
}
