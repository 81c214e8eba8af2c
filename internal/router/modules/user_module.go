package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/swastha-auth/internal/domain/repository"
	handlers "github.com/oksasatya/swastha-auth/internal/interface/http"
	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
)

// UserModule wires profile and audit routes. All of them need a token.
// GET/PUT /api/profile, GET /api/audits, GET /api/users/:id/audits (self or admin),
// GET /api/audits/search, GET /api/users, GET/DELETE /api/users/:id,
// POST /api/users/:id/verify (admin)
type UserModule struct {
	Handler  *handlers.UserHandler
	JWT      *helpers.JWTManager
	Sessions repository.SessionRepository
	Limits   RouteLimits
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager, sessions repository.SessionRepository, limits RouteLimits) *UserModule {
	return &UserModule{Handler: h, JWT: jwt, Sessions: sessions, Limits: limits}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT, m.Sessions))
	auth.Use(m.Limits.Per("user", 120, time.Minute, middleware.KeyByUserID()))
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.GET("/audits", m.Handler.MyAudits)
		auth.GET("/users/:id/audits", middleware.SelfOrAdmin("id"), m.Handler.UserAudits)
	}

	admin := auth.Group("/")
	admin.Use(middleware.AdminOnly())
	{
		admin.GET("/audits/search", m.Handler.SearchAudits)
		admin.GET("/users", m.Handler.ListUsers)
		admin.GET("/users/:id", m.Handler.GetUser)
		admin.DELETE("/users/:id", m.Handler.DeleteUser)
		admin.POST("/users/:id/verify", m.Handler.Verify)
	}
}
