package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"tradewarden/internal/config"
	"tradewarden/internal/database"
	"tradewarden/internal/handlers"
	"tradewarden/internal/logger"
	"tradewarden/internal/market"
	"tradewarden/internal/middleware"
	"tradewarden/internal/notify"
	"tradewarden/internal/oversight"
	"tradewarden/internal/quota"
	"tradewarden/internal/risk"
	"tradewarden/internal/services"
	"tradewarden/internal/validator"

	"tradewarden/internal/execution"

	"github.com/gin-gonic/gin"
)

// expirySweepInterval is how often pending approvals are checked for
// expiry. Resolution callbacks also expire lazily, so the sweep only
// bounds how long an abandoned request lingers.
const expirySweepInterval = 5 * time.Minute

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	riskCfg, err := risk.LoadConfig(appConfig.RiskConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load risk configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()

	// External collaborators
	provider := market.NewSimProvider(appConfig.MarketRateLimit, time.Now().UnixNano())
	exec := execution.NewAdapter(provider, appConfig.ExecMaxAttempts, appConfig.ExecBackoff)
	notifier := notify.NewLogNotifier()
	oversightClient := oversight.NewLogClient()
	ledger := quota.NewLedger(db)

	// Services
	auditService := services.NewAuditService(db)
	portfolioService := services.NewPortfolioService(db, provider)
	budgetGate := services.NewBudgetGate(ledger, notifier)
	approvalService := services.NewApprovalService(db, oversightClient, notifier, appConfig.OversightTimeout)
	tradeService := services.NewTradeService(db, provider, exec, budgetGate, ledger, portfolioService, approvalService, notifier, riskCfg)
	approvalService.SetExecutor(tradeService)
	agentService := services.NewAgentService(db, ledger, tradeService, portfolioService, auditService)

	// Handlers
	agentHandler := handlers.NewAgentHandler(agentService)
	tradeHandler := handlers.NewTradeHandler(tradeService, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	approvalHandler := handlers.NewApprovalHandler(approvalService, auditService)

	// Background expiry sweeper
	stopSweeper := make(chan struct{})
	go func() {
		ticker := time.NewTicker(expirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopSweeper:
				return
			case <-ticker.C:
				expired, sweepErr := approvalService.ExpireStale(time.Now())
				if sweepErr != nil {
					log.Errorw("approval expiry sweep failed", "error", sweepErr)
					continue
				}
				if expired > 0 {
					log.Infow("expired stale approval requests", "count", expired)
				}
			}
		}
	}()
	defer close(stopSweeper)

	validator.Register()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	agents := v1.Group("/agents")
	agents.POST("", agentHandler.CreateAgent)
	agents.GET("/:id", agentHandler.GetAgent)
	agents.DELETE("/:id", agentHandler.TerminateAgent)
	agents.POST("/:id/trades", tradeHandler.SubmitTrade)
	agents.GET("/:id/trades", tradeHandler.GetTrades)
	agents.GET("/:id/portfolio", portfolioHandler.GetPortfolio)
	agents.GET("/:id/portfolio/value", portfolioHandler.GetPortfolioValue)
	agents.GET("/:id/snapshots", portfolioHandler.GetSnapshots)
	agents.GET("/:id/approvals", approvalHandler.GetApprovals)

	callbacks := v1.Group("/callbacks")
	callbacks.Use(middleware.CallbackAuth(appConfig.CallbackJWTSecret))
	callbacks.POST("/oversight", approvalHandler.OversightCallback)

	log.Infof("Starting tradewarden server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
