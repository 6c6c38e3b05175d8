package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"ticket-resale/internal/services"
	"ticket-resale/internal/status"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	app            *pocketbase.PocketBase
	paymentService *services.PaymentService
}

func NewPaymentHandler(app *pocketbase.PocketBase, paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		app:            app,
		paymentService: paymentService,
	}
}

// GenJdbQr - Issue a JDB settlement QR for an accepted chat
func (h *PaymentHandler) GenJdbQr(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		ChatID string `json:"chat_id"`
		Phone  string `json:"phone"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ChatID == "" {
		return apis.NewBadRequestError("chat_id is required", nil)
	}

	ctx := e.Request.Context()
	code, err := h.paymentService.CreateSettlementQR(ctx, req.ChatID, e.Auth.Id, req.Phone)
	if err != nil {
		if errors.Is(err, status.ErrFailedPayment) {
			slog.Error("h.paymentService.CreateSettlementQR()", "chat_id", req.ChatID, "error", err)
			return apis.NewApiError(http.StatusServiceUnavailable, "Payment provider unavailable", err)
		}
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "success", "code": code})
}

// CheckSettlement - Poll the bank for a chat's bill status
func (h *PaymentHandler) CheckSettlement(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	tran, err := h.paymentService.CheckSettlement(ctx, chatID, e.Auth.Id)
	if err != nil {
		if errors.Is(err, status.ErrFailedPayment) {
			return e.JSON(http.StatusOK, map[string]any{"status": "pending"})
		}
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"status": "paid", "transaction": tran})
}

// SimulatePayment - Fake a bank success notification (development only)
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	var req struct {
		ChatID string `json:"chat_id"`
		Status string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	h.paymentService.PubNub.Publish().
		Channel("bank-payment-notifications").
		Message(map[string]any{"chat_id": req.ChatID, "status": req.Status}).
		Execute()

	return e.JSON(http.StatusOK, map[string]any{"message": "Payment simulation sent"})
}
