package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
)

// Handler registers a resource's routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      *handler.Handler
}

func NewRouter(auth *middleware.AuthMiddleware, h *handler.Handler, config Config) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
		middleware.CORS(config.CORSConfig),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine: engine,
		auth:   auth,
		h:      h,
	}
}

// Setup wires the operational endpoints. Resource handlers register on the
// groups returned by Public/Protected.
func (r *Router) Setup() {
	r.engine.GET("/health", r.h.HealthCheck)
	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/health/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)
}

// Public returns the unauthenticated API group (websocket handshake does its
// own token validation).
func (r *Router) Public() *gin.RouterGroup {
	return r.engine.Group("/api/v1")
}

// Protected returns the API group behind JWT authentication.
func (r *Router) Protected() *gin.RouterGroup {
	g := r.engine.Group("/api/v1")
	g.Use(r.auth.Authenticate())
	return g
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
