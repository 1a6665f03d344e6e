package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"ownercal/internal/infra/obs"
)

type CalendarHTTP interface {
	Month(c *gin.Context)
	SetAvailability(c *gin.Context)
	AddPriceRule(c *gin.Context)
}

type Handlers struct {
	Calendar CalendarHTTP
}

type Options struct {
	Env  string
	Addr string
}

func NewServer(opts Options, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           NewRouter(opts.Env, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(env string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", obs.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", obs.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	if h.Calendar != nil {
		api := router.Group("/api")
		api.GET("/calendar_data/:property_id", h.Calendar.Month)
		owner := api.Group("/owner")
		owner.POST("/set_availability", h.Calendar.SetAvailability)
		owner.POST("/price_rule", h.Calendar.AddPriceRule)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
