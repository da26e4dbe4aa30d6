package panel

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"

	"bidscanner/internal/middleware"
)

// RouterConfig controls the middleware around the API
type RouterConfig struct {
	AdminKey     string
	RateLimit    rate.Limit
	RateBurst    int
	ScanCooldown time.Duration
	StaticDir    string
}

// DefaultRouterConfig allows 10 requests per second with bursts of 20
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimit:    10,
		RateBurst:    20,
		ScanCooldown: 2 * time.Second,
	}
}

// NewRouter builds the gin engine. ctx bounds the rate limiter's cleanup loop.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Local panels and reverse proxies only
	r.SetTrustedProxies([]string{
		"127.0.0.1",
		"::1",
		"172.16.0.0/12",
		"10.0.0.0/8",
		"192.168.0.0/16",
	})

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Admin-Key"}
	r.Use(cors.New(config))

	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.SecurityScanDetection())
	r.Use(middleware.HTTPMethodFilter([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}))
	r.Use(middleware.UserAgentFilter())

	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(ctx, cfg.RateLimit, cfg.RateBurst)))
	}

	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
		r.StaticFile("/", cfg.StaticDir+"/index.html")
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/ws", h.Events)

		api.GET("/tabs/active", h.ActiveTab)
		api.GET("/tabs/:id/data", h.TabData)
		api.POST("/tabs/:id/scan", middleware.ScanCooldown(cfg.ScanCooldown), h.TabScan)

		api.GET("/auth", h.AuthStatus)
		api.PUT("/auth", h.SetAuthStatus)
		api.POST("/side-panel", h.OpenSidePanel)

		api.GET("/options", h.GetOptions)
		api.PUT("/options", h.SaveOptions)

		api.GET("/buyers", h.ListBuyers)
		api.POST("/buyers", h.CreateBuyer)
		api.GET("/buyers/:id", h.GetBuyer)
		api.PUT("/buyers/:id", h.UpdateBuyer)
		api.DELETE("/buyers/:id", h.DeleteBuyer)

		api.GET("/bid-requests", h.ListBidRequests)
		api.POST("/bid-requests", h.CreateBidRequest)
		api.GET("/bid-requests/:id", h.GetBidRequest)

		admin := api.Group("/admin", middleware.AdminKeyMiddleware(cfg.AdminKey))
		{
			admin.DELETE("/data", h.ClearData)
			admin.POST("/expire", h.ExpireBidRequests)
		}
	}

	return r
}
