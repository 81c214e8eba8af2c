package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
)

type DebugModule struct {
	Limits RouteLimits
}

func NewDebugModule(limits RouteLimits) *DebugModule { return &DebugModule{Limits: limits} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	// expvar counters (auth_login_success, auth_lockouts, ...), rate-limited per IP
	rl := m.Limits.Per("debug", 120, time.Minute, middleware.KeyByIP())
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
}
