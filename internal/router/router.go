package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tishajain880/Chronobank/internal/chain"
	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/export"
	"github.com/tishajain880/Chronobank/internal/goal"
	"github.com/tishajain880/Chronobank/internal/handler"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/loan"
	"github.com/tishajain880/Chronobank/internal/middleware"
	"github.com/tishajain880/Chronobank/internal/notify"
	"github.com/tishajain880/Chronobank/internal/transfer"
)

// Services are the core components the API is a thin adapter over.
type Services struct {
	Store     *ledger.Store
	Transfers *transfer.Engine
	Goals     *goal.Service
	Sessions  *goal.Sessions
	Loans     *loan.Service
	Verifier  *chain.Verifier
	Exporter  *export.Exporter
	Monitor   *notify.Monitor
	Notifier  notify.Notifier
}

// SetupRouter builds the gin engine with all API routes.
func SetupRouter(cfg *config.Config, svc Services, log zerolog.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	db := svc.Store.DB()

	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	api := r.Group("/api")

	authHandler := handler.NewAuthHandler(svc.Store, svc.Sessions, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpireHours)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(cfg.JWT.Secret, db),
		middleware.AuditMiddleware(db),
	)

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/me", handler.GetMe)
	protected.POST("/profile", handler.UpdateProfile(db))
	protected.POST("/profile/password", handler.ChangePassword(db))

	accountHandler := handler.NewAccountHandler(svc.Store)
	protected.GET("/accounts", accountHandler.List)
	protected.POST("/accounts", accountHandler.Open)
	protected.POST("/accounts/:number/deposit", accountHandler.Deposit)
	protected.POST("/accounts/:number/withdraw", accountHandler.Withdraw)
	protected.POST("/accounts/:number/status", accountHandler.SetStatus)
	protected.DELETE("/accounts/:number", accountHandler.Delete)
	protected.POST("/money/deposit", accountHandler.DepositMoney)
	protected.POST("/money/withdraw", accountHandler.WithdrawMoney)

	transferHandler := handler.NewTransferHandler(svc.Transfers)
	protected.POST("/transfers", transferHandler.Create)
	protected.GET("/transfers", transferHandler.List)

	goalHandler := handler.NewGoalHandler(svc.Goals, svc.Sessions)
	protected.GET("/goals", goalHandler.List)
	protected.POST("/goals", goalHandler.Create)
	protected.POST("/goals/undo", goalHandler.Undo)
	protected.POST("/goals/redo", goalHandler.Redo)
	protected.POST("/goals/:id/allocate", goalHandler.Allocate)
	protected.POST("/goals/:id/withdraw", goalHandler.Withdraw)
	protected.GET("/goals/:id/history", goalHandler.History)
	protected.PUT("/goals/:id", goalHandler.Rename)
	protected.DELETE("/goals/:id", goalHandler.Delete)

	loanHandler := handler.NewLoanHandler(svc.Loans)
	protected.GET("/loans", loanHandler.List)
	protected.POST("/loans", loanHandler.Apply)
	protected.POST("/loans/:id/repay", loanHandler.Repay)
	protected.GET("/loans/:id/quote", loanHandler.Quote)
	protected.GET("/loans/:id/schedule", loanHandler.Schedule)

	chainHandler := handler.NewChainHandler(svc.Verifier, svc.Notifier)
	protected.GET("/chain/verify", chainHandler.Verify)
	protected.GET("/chain/blocks", chainHandler.Blocks)

	exportHandler := handler.NewExportHandler(svc.Exporter)
	protected.GET("/export/csv", exportHandler.ExportCSV)
	protected.GET("/export/xlsx", exportHandler.ExportXLSX)
	protected.POST("/export/archive", exportHandler.Archive)

	if svc.Monitor != nil {
		alertHandler := handler.NewAlertHandler(svc.Monitor)
		protected.GET("/alerts", alertHandler.List)
	}

	logHandler := handler.NewLogHandler(db)
	protected.GET("/logs", logHandler.ListLogs)

	return r
}
