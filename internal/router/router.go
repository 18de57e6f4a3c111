package router

import (
	"time"

	"tallerpos/internal/config"
	"tallerpos/internal/handler"
	"tallerpos/internal/infra"
	"tallerpos/internal/middleware"
	"tallerpos/internal/model"
	"tallerpos/internal/repository"
	"tallerpos/internal/service"
	"tallerpos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers into the HTTP engine.
// This is the composition root: everything downstream receives its
// dependencies here.
func Setup(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Repositories
	cashboxRepo := repository.NewCashboxRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// Services
	locker := infra.NewSessionLocker(rdb)
	dispatcher := worker.NewDispatcher(rdb)
	cashboxSvc := service.NewCashboxService(cashboxRepo, locker, dispatcher)
	authSvc := service.NewAuthService(operatorRepo, cfg)

	// Handlers
	cashboxH := handler.NewCashboxHandler(cashboxSvc)
	authH := handler.NewAuthHandler(authSvc)
	healthH := handler.NewHealthHandler(db, rdb)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.CORS(),
		middleware.ErrorHandler(),
	)

	r.GET("/healthz", healthH.Live)
	r.GET("/readyz", healthH.Ready)

	v1 := r.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	protected := v1.Group("")
	protected.Use(
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RateLimiter(300, time.Minute),
	)

	anyOperator := middleware.RequireRole(model.RoleCashier, model.RoleSupervisor, model.RoleAdmin)
	supervisorUp := middleware.RequireRole(model.RoleSupervisor, model.RoleAdmin)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	cashbox := protected.Group("/cashbox")
	{
		cashbox.POST("/sessions", anyOperator, cashboxH.Open)
		cashbox.POST("/sessions/close", anyOperator, cashboxH.Close)
		cashbox.POST("/movements", anyOperator, cashboxH.RecordMovement)

		cashbox.GET("/sessions", supervisorUp, cashboxH.History)
		cashbox.GET("/sessions/:id", anyOperator, cashboxH.Get)
		cashbox.GET("/sessions/:id/movements", anyOperator, cashboxH.ListMovements)
		cashbox.GET("/sessions/:id/totals", anyOperator, cashboxH.Totals)
		cashbox.GET("/registers/:register/active", anyOperator, cashboxH.GetActive)
	}

	operators := protected.Group("/operators")
	operators.Use(adminOnly)
	{
		operators.POST("", authH.CreateOperator)
		operators.GET("", authH.ListOperators)
		operators.PATCH("/:id", authH.UpdateOperator)
		operators.DELETE("/:id", authH.DeactivateOperator)
		operators.POST("/:id/reactivate", authH.ReactivateOperator)
	}

	return r
}
