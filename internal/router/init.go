package router

import (
	"github.com/oksasatya/swastha-auth/internal/application"
	"github.com/oksasatya/swastha-auth/internal/container"
	"github.com/oksasatya/swastha-auth/internal/domain/security"
	pginfra "github.com/oksasatya/swastha-auth/internal/infrastructure/postgres"
	"github.com/oksasatya/swastha-auth/internal/infrastructure/redisstore"
	handlers "github.com/oksasatya/swastha-auth/internal/interface/http"
	"github.com/oksasatya/swastha-auth/internal/router/modules"
	"github.com/oksasatya/swastha-auth/pkg/helpers"
)

// LoginRatePrefix namespaces the per-address login windows.
const LoginRatePrefix = "rl:login:ip:"

type AuthModuleDeps struct {
	Service     *application.AuthService
	Sessions    *redisstore.SessionStore
	AuthHandler *handlers.AuthHandler
	UserHandler *handlers.UserHandler
}

func buildAuthDeps() AuthModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)
	policy := security.NewPasswordPolicy(hasher)
	store := application.NewCredentialStore(
		pginfra.NewAccountRepository(container.GetPGPool()),
		hasher,
		cfg.PasswordExpiryDays,
		cfg.PasswordExpiryUnit,
	)
	sessions := redisstore.NewSessionStore(container.GetRedis())
	limiter := redisstore.NewWindowLimiter(container.GetRedis(), LoginRatePrefix, cfg.LoginRateMax, cfg.LoginRateWindow)

	service := application.NewAuthService(
		store,
		policy,
		limiter,
		container.GetJWT(),
		sessions,
		application.NewResetService(store, policy, cfg.ResetTokenTTL),
		container.GetNotifier(),
		container.GetAudit(),
		logger,
		application.AuthOptions{
			Lockout:              security.Lockout{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration},
			TokenTTL:             cfg.TokenTTL,
			ResetRequireVerified: cfg.ResetRequireVerified,
			ResetURL:             cfg.ResetPasswordURL,
		},
	)
	service.Search = container.GetSearcher()

	return AuthModuleDeps{
		Service:     service,
		Sessions:    sessions,
		AuthHandler: handlers.NewAuthHandler(service, logger, cfg.CookieDomain, cfg.CookieSecure),
		UserHandler: handlers.NewUserHandler(service, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	deps := buildAuthDeps()
	routeLimits := modules.RouteLimits{
		Redis:  container.GetRedis(),
		Logger: container.GetLogger(),
	}

	r.Add(modules.NewAuthModule(deps.AuthHandler, container.GetJWT(), deps.Sessions, routeLimits))
	r.Add(modules.NewUserModule(deps.UserHandler, container.GetJWT(), deps.Sessions, routeLimits))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(routeLimits))
	}
}
