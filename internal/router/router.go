package router // route registration for the flight-surety API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flight-surety/internal/config"
	"github.com/iliyamo/flight-surety/internal/handler"
	"github.com/iliyamo/flight-surety/internal/middleware"
	"github.com/iliyamo/flight-surety/internal/model"
)

// Handlers groups every handler the router wires up.
type Handlers struct {
	Auth      *handler.AuthHandler
	Airlines  *handler.AirlineHandler
	Oracles   *handler.OracleHandler
	Insurance *handler.InsuranceHandler
	Admin     *handler.AdminHandler
	Query     *handler.QueryHandler
}

// Register wires all routes onto the Echo instance.  Route groups:
//
//	/healthz                 – unauthenticated health check
//	/v1/auth/*               – register, login, token exchange
//	/v1/status, /v1/airlines/:id – public cached reads
//	/v1/*                    – JWT-protected domain operations
//	/v1/admin/*              – owner-only control surface
//
// Mutating routes sit behind the Redis token-bucket limiter; the public
// read routes sit behind the Redis response cache.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	// Session management.  No JWT required; these endpoints mint or
	// exchange tokens themselves.
	auth := e.Group("/v1/auth", limiter)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/refresh-access", h.Auth.RefreshAccess)
	auth.POST("/logout", h.Auth.Logout)

	// Public read surface, cached.
	e.GET("/v1/status", h.Query.Status, cache)
	e.GET("/v1/airlines/:id", h.Airlines.Get, cache)

	// Everything below requires a valid access token.
	v1 := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	v1.GET("/me", h.Auth.Me)

	// Admission governance.  Admit also serves the airline bootstrap, so
	// the owner may sponsor the first entry.
	airlines := v1.Group("/airlines", limiter,
		middleware.RequireRole(model.RoleAirline, model.RoleOwner))
	airlines.POST("", h.Airlines.Admit)
	airlines.POST("/:id/fund", h.Airlines.Fund)
	airlines.POST("/:id/vote", h.Airlines.Vote)

	// Oracle surface.
	oracles := v1.Group("/oracles", limiter, middleware.RequireRole(model.RoleOracle))
	oracles.POST("", h.Oracles.Register)
	oracles.GET("/indexes", h.Oracles.Indexes)
	oracles.POST("/responses", h.Oracles.SubmitResponse)

	// Status inquiries may be opened by any authenticated participant.
	v1.POST("/flights/status-request", h.Oracles.RequestStatus, limiter)
	v1.POST("/flights/status", h.Oracles.GetRequest)

	// Insurance surface.
	v1.POST("/insurance", h.Insurance.Buy, limiter, middleware.RequireRole(model.RoleCustomer))
	// Credit is open to any authenticated caller; the orchestrator
	// allow-list inside the ledger decides who may actually settle.
	v1.POST("/insurance/credit", h.Insurance.Credit, limiter)
	v1.POST("/payouts/withdraw", h.Insurance.Withdraw, limiter, middleware.RequireRole(model.RoleCustomer))
	v1.GET("/payouts/balance", h.Insurance.Balance, middleware.RequireRole(model.RoleCustomer))

	// Owner-only control surface.  The gate enforces ownership again on
	// top of the role check.
	admin := v1.Group("/admin", middleware.RequireRole(model.RoleOwner))
	admin.PUT("/operational", h.Admin.SetOperational)
	admin.POST("/orchestrators/:id", h.Admin.Authorize)
	admin.DELETE("/orchestrators/:id", h.Admin.Deauthorize)
}
