// Package server assembles the Gin router for the review API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"fraudreview/internal/handlers"
	"fraudreview/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Transactions  *handlers.TransactionHandler
	Notifications *handlers.NotificationHandler
	Stats         *handlers.StatsHandler
	Statements    *handlers.StatementHandler
	Pipeline      *handlers.PipelineHandler
}

// Options toggles the operational endpoints.
type Options struct {
	// PipelineAPIKey guards /pipeline routes. Empty disables them.
	PipelineAPIKey string
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// Swagger mounts /swagger/*any.
	Swagger bool
	// RequestLogging logs every request through the http logger.
	RequestLogging bool
}

// NewRouter builds the engine with all API routes.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.RequestLogging {
		router.Use(middleware.RequestLogging())
	}
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	// Reviewer routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", h.Auth.GetProfile)

	transactions := protected.Group("/transactions")
	transactions.GET("", h.Transactions.ListTransactions)
	transactions.GET("/summary", h.Transactions.GetSummary)
	transactions.GET("/:id", h.Transactions.GetTransaction)
	transactions.GET("/:id/history", h.Transactions.GetHistory)
	transactions.POST("/:id/approve", h.Transactions.Approve)
	transactions.POST("/:id/dispute", h.Transactions.Dispute)
	transactions.POST("/:id/escalate", h.Transactions.Escalate)

	protected.GET("/review/escalated", h.Transactions.ListEscalated)

	notifications := protected.Group("/notifications")
	notifications.GET("", h.Notifications.ListNotifications)
	notifications.POST("", h.Notifications.RecordNotification)
	notifications.POST("/:id/retrigger", h.Notifications.Retrigger)

	protected.GET("/stats", h.Stats.GetStats)

	statements := protected.Group("/statements")
	statements.POST("", h.Statements.UploadStatement)
	statements.GET("", h.Statements.ListStatements)
	statements.GET("/rollups", h.Stats.GetStatementRollups)
	statements.GET("/:id", h.Statements.GetStatement)

	// Parsing pipeline callbacks
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.GET("/statements/pending", h.Pipeline.ListPending)
	pipeline.GET("/statements/:id/file", h.Pipeline.DownloadFile)
	pipeline.POST("/statements/:id/complete", h.Pipeline.CompleteStatement)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
