package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storepay/internal/middleware"
	"storepay/internal/models"
	"storepay/internal/payment"
	"storepay/internal/repository"
	"storepay/internal/service"
)

// PaymentService is the part of service.PaymentService the API calls.
type PaymentService interface {
	Initiate(ctx context.Context, userID string, req service.InitiateRequest) (*service.InitiateResult, error)
	VerifyBankTransfer(ctx context.Context, input, operator string) (*service.VerifyResult, error)
}

// PaymentHandler serves buyer payment initiation and the operator payment API.
type PaymentHandler struct {
	svc    PaymentService
	repos  *Repos
	logger *zap.Logger
}

func NewPaymentHandler(svc PaymentService, repos *Repos, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, repos: repos, logger: logger}
}

// Initiate starts a payment for one of the caller's orders.
// POST /api/payments/initiate
func (h *PaymentHandler) Initiate(c echo.Context) error {
	var req models.InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return errorResponse(c, http.StatusBadRequest, "orderId is required")
	}

	result, err := h.svc.Initiate(c.Request().Context(), middleware.UserID(c), service.InitiateRequest{
		OrderID:   req.OrderID,
		Method:    req.Method,
		ReturnURL: req.ReturnURL,
	})
	if err != nil {
		return h.initiateError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) initiateError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return errorResponse(c, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		return errorResponse(c, http.StatusConflict, "Order is already paid")
	case errors.Is(err, service.ErrUnsupportedMethod):
		return errorResponse(c, http.StatusBadRequest, "Unsupported payment method")
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		return errorResponse(c, http.StatusServiceUnavailable, "Payment gateway disabled")
	default:
		h.logger.Error("payment initiation failed", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Internal error")
	}
}

// VerifyTransfer confirms a bank transfer by reference code.
// POST /api/admin/payments/bank-transfer/verify
func (h *PaymentHandler) VerifyTransfer(c echo.Context) error {
	var req models.VerifyTransferRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.ReferenceCode) == "" {
		return errorResponse(c, http.StatusBadRequest, "referenceCode is required")
	}

	result, err := h.svc.VerifyBankTransfer(c.Request().Context(), req.ReferenceCode, middleware.Operator(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return errorResponse(c, http.StatusNotFound, "Payment not found")
		case errors.Is(err, service.ErrNotBankTransfer):
			return errorResponse(c, http.StatusUnprocessableEntity, "Payment is not a bank transfer")
		case errors.Is(err, service.ErrPaymentFailed):
			return errorResponse(c, http.StatusConflict, "Payment has already failed")
		case errors.Is(err, service.ErrOrderAlreadyPaid):
			return errorResponse(c, http.StatusConflict, "Order is already paid by another payment")
		default:
			h.logger.Error("bank transfer verification failed", zap.Error(err))
			return errorResponse(c, http.StatusInternalServerError, "Internal error")
		}
	}
	return c.JSON(http.StatusOK, result)
}

// ListPayments returns payments with pagination and search.
// GET /api/admin/payments?limit=&page=&q=
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	page := queryInt(c, "page", 1)
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if page <= 0 {
		page = 1
	}

	payments, total, err := h.repos.Payment.FindAll(c.Request().Context(), limit, page, c.QueryParam("q"))
	if err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve payments")
	}
	return successResponse(c, "Successful", paginatedResponse(payments, total, page, limit))
}

// GetPayment returns one payment by reference code.
// GET /api/admin/payments/:reference
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	ref := strings.ToUpper(strings.TrimSpace(c.Param("reference")))
	if !payment.IsReferenceCode(ref) {
		return errorResponse(c, http.StatusNotFound, "Payment not found")
	}
	p, err := h.repos.Payment.FindByReference(c.Request().Context(), ref)
	if err != nil {
		if repository.IsNotFound(err) {
			return errorResponse(c, http.StatusNotFound, "Payment not found")
		}
		h.logger.Error("Failed to load payment", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve payment")
	}
	return successResponse(c, "Successful", p)
}

// PaymentStats counts payments per status and callbacks per gateway outcome.
// GET /api/admin/payments/stats
func (h *PaymentHandler) PaymentStats(c echo.Context) error {
	ctx := c.Request().Context()
	counts, err := h.repos.Payment.CountByStatus(ctx)
	if err != nil {
		h.logger.Error("Failed to count payments", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to count payments")
	}

	callbacks := make(map[string]map[models.CallbackOutcome]int64)
	for _, gateway := range []string{payment.GatewayWalletA, payment.GatewayWalletB} {
		callbacks[gateway] = make(map[models.CallbackOutcome]int64)
		for _, outcome := range []models.CallbackOutcome{
			models.CallbackOutcomeApplied,
			models.CallbackOutcomeReplayed,
			models.CallbackOutcomeRejected,
			models.CallbackOutcomeUnknownReference,
			models.CallbackOutcomeError,
		} {
			n, err := h.repos.Callback.CountByOutcome(ctx, gateway, outcome)
			if err != nil {
				h.logger.Error("Failed to count callbacks", zap.Error(err))
				return errorResponse(c, http.StatusInternalServerError, "Failed to count callbacks")
			}
			callbacks[gateway][outcome] = n
		}
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"payments":  counts,
		"callbacks": callbacks,
	})
}

// ListCallbacks returns the latest gateway callbacks.
// GET /api/admin/payments/callbacks?gateway=&limit=
func (h *PaymentHandler) ListCallbacks(c echo.Context) error {
	gateway := c.QueryParam("gateway")
	if gateway != "" && gateway != payment.GatewayWalletA && gateway != payment.GatewayWalletB {
		return errorResponse(c, http.StatusBadRequest, "Unknown gateway")
	}
	logs, err := h.repos.Callback.FindRecent(c.Request().Context(), gateway, queryInt(c, "limit", 100))
	if err != nil {
		h.logger.Error("Failed to list callbacks", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve callbacks")
	}
	return successResponse(c, "Successful", logs)
}
