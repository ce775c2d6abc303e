package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/clinical-intake/internal/config"
	"github.com/iliyamo/clinical-intake/internal/handler"
	"github.com/iliyamo/clinical-intake/internal/middleware"
	"github.com/iliyamo/clinical-intake/internal/model"
	"github.com/iliyamo/clinical-intake/internal/redact"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Redis     *redis.Client // optional; nil disables rate limiting
	Auth      *handler.AuthHandler
	Patients  *handler.PatientHandler
	Log       *zap.Logger
}

// New builds the echo instance with the redacting serializer, error
// handler, shared middleware and all routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = redact.NewSerializer(middleware.RolesOf)
	e.HTTPErrorHandler = handler.HTTPErrorHandler(d.Log)

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.RequestLogger(d.Log))

	RegisterRoutes(e, d)
	return e
}

// RegisterRoutes mounts the health check, login and the protected /api
// routes.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	api := e.Group("/api")
	api.POST("/login", d.Auth.Login, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))

	authed := api.Group("", middleware.JWTAuth(d.JWTSecret))
	authed.GET("/me", d.Auth.Me)

	clinician := middleware.RequireRole(model.RoleClinician)
	staff := middleware.RequireRole(model.RoleClinician, model.RoleAdmin)
	admin := middleware.RequireRole(model.RoleAdmin)

	p := authed.Group("/patients")
	p.POST("/intake", d.Patients.Intake, clinician)
	p.GET("", d.Patients.List, staff)
	p.GET("/:id", d.Patients.Get, staff)
	p.PUT("/:id", d.Patients.Update, staff)
	p.DELETE("/:id", d.Patients.Delete, admin)
	p.GET("/:id/clinicians", d.Patients.ListClinicians, staff)
	p.POST("/:id/clinicians", d.Patients.Assign, admin)
	p.DELETE("/:id/clinicians/:clinician_id", d.Patients.Unassign, admin)
}
