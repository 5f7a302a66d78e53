package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/extracts"
	"invoice-backend/internal/invoices"
	"invoice-backend/internal/services/health"
	"invoice-backend/internal/shared/config"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/server/middleware"
	"invoice-backend/internal/shared/server/respond"
	"invoice-backend/internal/users"
)

const uploadRateGroup = "UPLOAD"

// RouterDeps carries the handlers mounted under /api/v1.
type RouterDeps struct {
	Config         config.Config
	Health         *health.Service
	InvoiceHandler *invoices.Handler
	ExtractHandler *extracts.Handler
	UserHandler    *users.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(uploadRateLimit(deps.Config)),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil)
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.OK(c, healthSvc.Status())
	})
	api.GET("/health/db", func(c *gin.Context) {
		payload, ok := healthSvc.Database(c.Request.Context())
		if !ok {
			respond.JSON(c, http.StatusServiceUnavailable, payload)
			return
		}
		respond.OK(c, payload)
	})

	if deps.InvoiceHandler != nil {
		deps.InvoiceHandler.RegisterRoutes(api)
	}
	if deps.ExtractHandler != nil {
		deps.ExtractHandler.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}

	return r
}

func uploadRateLimit(cfg config.Config) middleware.RateLimitConfig {
	rules := map[string]middleware.RateLimitRule{}
	if cfg.UploadRatePerMinute > 0 {
		burst := cfg.UploadRateBurst
		if burst <= 0 {
			burst = 1
		}
		rules[uploadRateGroup] = middleware.RateLimitRule{
			Rate:  float64(cfg.UploadRatePerMinute) / time.Minute.Seconds(),
			Burst: burst,
		}
	}
	return middleware.RateLimitConfig{
		Rules: rules,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/invoices/upload" {
				return uploadRateGroup
			}
			return ""
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
