package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storepay/internal/middleware"
	"storepay/internal/payment"
	"storepay/internal/service"
)

// CallbackService applies gateway callbacks.
type CallbackService interface {
	HandleCallback(ctx context.Context, gateway string, raw []byte) (service.Outcome, error)
}

// PaymentCallbackHandler handles gateway callbacks. Each gateway gets its own
// acknowledgement builder: wallet A treats returnCode 0 as success, wallet B
// treats 1 as success.
type PaymentCallbackHandler struct {
	svc    CallbackService
	logger *zap.Logger
}

// NewPaymentCallbackHandler creates a new payment callback handler.
func NewPaymentCallbackHandler(svc CallbackService, logger *zap.Logger) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{svc: svc, logger: logger}
}

// ── Wallet A callback ────────────────────────────────────────────────

type walletAAck struct {
	ReturnCode    int    `json:"returnCode"`
	ReturnMessage string `json:"returnMessage"`
}

// WalletAAccepted is wallet A's positive acknowledgement.
func WalletAAccepted(c echo.Context) error {
	return c.JSON(http.StatusOK, walletAAck{ReturnCode: 0, ReturnMessage: "success"})
}

func walletARefused(c echo.Context) error {
	return c.JSON(http.StatusOK, walletAAck{ReturnCode: 1, ReturnMessage: "callback not accepted"})
}

func (h *PaymentCallbackHandler) WalletACallback(c echo.Context) error {
	return h.handle(c, payment.GatewayWalletA, WalletAAccepted, walletARefused)
}

// ── Wallet B callback ────────────────────────────────────────────────

type walletBAck struct {
	ReturnCode    int    `json:"returnCode"`
	ReturnMessage string `json:"returnMessage"`
}

// WalletBAccepted is wallet B's positive acknowledgement.
func WalletBAccepted(c echo.Context) error {
	return c.JSON(http.StatusOK, walletBAck{ReturnCode: 1, ReturnMessage: "success"})
}

func walletBRefused(c echo.Context) error {
	return c.JSON(http.StatusOK, walletBAck{ReturnCode: -1, ReturnMessage: "callback not accepted"})
}

func (h *PaymentCallbackHandler) WalletBCallback(c echo.Context) error {
	return h.handle(c, payment.GatewayWalletB, WalletBAccepted, walletBRefused)
}

// handle answers 5xx only when storage failed; rejected and unknown callbacks
// get the same negative acknowledgement so the caller cannot tell them apart.
func (h *PaymentCallbackHandler) handle(c echo.Context, gateway string, accepted, refused echo.HandlerFunc) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Warn("callback body unreadable", zap.String("gateway", gateway), zap.Error(err))
		return refused(c)
	}

	outcome, err := h.svc.HandleCallback(c.Request().Context(), gateway, raw)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "temporarily unavailable"})
	}

	if outcome.Settled() {
		c.Set(middleware.ContextCallbackSettled, true)
		return accepted(c)
	}
	return refused(c)
}
