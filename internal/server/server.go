package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fanledger/internal/auth"
	"fanledger/internal/config"
	"fanledger/internal/entitlement"
	"fanledger/internal/events"
	"fanledger/internal/fan"
	"fanledger/internal/purchase"
	"fanledger/internal/wallet"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	config *config.Config
	http   *http.Server
}

func New(db *sqlx.DB, cfg *config.Config, emitter events.Emitter) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	fanHandler := fan.NewHandler(db, cfg.JWTSecret)
	walletHandler := wallet.NewHandler(db, cfg.MaxTopUpCents)
	purchaseHandler := purchase.NewHandler(db, emitter)
	entitlementHandler := entitlement.NewHandler(db)

	public := router.Group("/auth")
	{
		public.POST("/register", fanHandler.Register)
		public.POST("/login", fanHandler.Login)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	me := router.Group("/")
	me.Use(authMiddleware)
	{
		me.GET("/me", fanHandler.GetMe)
		me.POST("/me/confirm-adult", fanHandler.ConfirmAdult)
	}

	fans := router.Group("/fans/:fanID")
	fans.Use(authMiddleware, auth.RequireFanSelf())
	{
		fans.GET("/wallet", walletHandler.GetBalance)
		fans.POST("/wallet/topup", walletHandler.TopUp)
		fans.GET("/wallet/transactions", walletHandler.ListTransactions)

		fans.POST("/purchases", purchaseHandler.Create)
		fans.GET("/purchases", purchaseHandler.List)
		fans.POST("/ppv/:messageID/unlock", purchaseHandler.UnlockPPV)

		fans.GET("/entitlements", entitlementHandler.Get)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
