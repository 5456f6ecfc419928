package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storepay/internal/handler"
	"storepay/internal/handler/api"
	"storepay/internal/middleware"
	"storepay/internal/payment"
	"storepay/internal/repository"
	"storepay/internal/service"
)

// CallbackBodyLimit caps gateway callback bodies.
const CallbackBodyLimit = "64K"

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	payments *service.PaymentService,
	callbackCache middleware.CallbackCache,
	logger *zap.Logger,
	apiKey string,
	hashFilePath string,
	jwtSecret string,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.CORS())

	// Repositories
	repos := &api.Repos{
		Payment:  repository.NewPaymentRepository(db),
		Callback: repository.NewCallbackLogRepository(db),
	}

	// Handlers
	paymentHandler := api.NewPaymentHandler(payments, repos, logger)
	paymentCallbackHandler := handler.NewPaymentCallbackHandler(payments, logger)

	// Buyer API
	buyerGroup := e.Group("/api/payments")
	buyerGroup.Use(middleware.BuyerAuth(jwtSecret))
	buyerGroup.POST("/initiate", paymentHandler.Initiate)

	// Operator API
	adminGroup := e.Group("/api/admin/payments")
	adminGroup.Use(middleware.APIAuth(apiKey, hashFilePath))
	adminGroup.POST("/bank-transfer/verify", paymentHandler.VerifyTransfer)
	adminGroup.GET("", paymentHandler.ListPayments)
	adminGroup.GET("/stats", paymentHandler.PaymentStats)
	adminGroup.GET("/callbacks", paymentHandler.ListCallbacks)
	adminGroup.GET("/:reference", paymentHandler.GetPayment)

	// Payment callback routes (authenticated by signature, not by header)
	paymentGroup := e.Group("/payment")
	paymentGroup.Use(echomw.BodyLimit(CallbackBodyLimit))
	paymentGroup.POST("/wallet-a/callback", paymentCallbackHandler.WalletACallback,
		middleware.CallbackReplayGuard(callbackCache, payment.GatewayWalletA, handler.WalletAAccepted))
	paymentGroup.POST("/wallet-b/callback", paymentCallbackHandler.WalletBCallback,
		middleware.CallbackReplayGuard(callbackCache, payment.GatewayWalletB, handler.WalletBAccepted))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
