package handlers

import (
	"net/http"
	"strings"

	"ticket-resale/internal/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type NegotiationHandler struct {
	app                *pocketbase.PocketBase
	negotiationService *services.NegotiationService
}

func NewNegotiationHandler(app *pocketbase.PocketBase, negotiationService *services.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{
		app:                app,
		negotiationService: negotiationService,
	}
}

const maxTextLength = 2000

// SendText - Plain chat message
func (h *NegotiationHandler) SendText(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return apis.NewBadRequestError("content is required", nil)
	}
	if len(req.Content) > maxTextLength {
		return apis.NewBadRequestError("content too long", nil)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	msg, err := h.negotiationService.SendText(ctx, chatID, e.Auth.Id, req.Content)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, msg)
}

// MakeOffer - Buyer opens (or reopens) price negotiation
func (h *NegotiationHandler) MakeOffer(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Price int64 `json:"price"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	msg, err := h.negotiationService.MakeOffer(ctx, chatID, e.Auth.Id, req.Price)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, msg)
}

// CounterOffer - Reply to the other side's standing offer with a new price
func (h *NegotiationHandler) CounterOffer(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Price int64 `json:"price"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	msg, err := h.negotiationService.CounterOffer(ctx, chatID, e.Auth.Id, req.Price)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, msg)
}

// AcceptOffer - Lock in the agreed price and move the chat to accepted
func (h *NegotiationHandler) AcceptOffer(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Price int64 `json:"price"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	msg, err := h.negotiationService.AcceptOffer(ctx, chatID, e.Auth.Id, req.Price)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, msg)
}

// RejectOffer - Decline the standing offer; negotiation stays open
func (h *NegotiationHandler) RejectOffer(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	msg, err := h.negotiationService.RejectOffer(ctx, chatID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, msg)
}
