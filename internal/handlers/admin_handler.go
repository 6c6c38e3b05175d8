package handlers

import (
	"net/http"
	"time"

	"ticket-resale/internal/services"
	"ticket-resale/models"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type AdminHandler struct {
	app            *pocketbase.PocketBase
	chats          services.ChatStore
	paymentService *services.PaymentService
	redis          *redis.Client
}

func NewAdminHandler(app *pocketbase.PocketBase, chats services.ChatStore, paymentService *services.PaymentService, redisClient *redis.Client) *AdminHandler {
	return &AdminHandler{
		app:            app,
		chats:          chats,
		paymentService: paymentService,
		redis:          redisClient,
	}
}

// GetNegotiationDashboard - Chat counts by status plus payment provider health
func (h *AdminHandler) GetNegotiationDashboard(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}
	ctx := e.Request.Context()

	counts, err := h.chats.CountByStatus(ctx)
	if err != nil {
		return apis.NewBadRequestError("Failed to count chats", err)
	}

	byStatus := map[string]int{}
	total := 0
	for _, s := range []models.ChatStatus{models.ChatActive, models.ChatAccepted, models.ChatRejected, models.ChatCompleted} {
		byStatus[string(s)] = counts[s]
		total += counts[s]
	}

	pendingSettlements := 0
	if h.redis != nil {
		iter := h.redis.Scan(ctx, 0, "settlement:*", 100).Iterator()
		for iter.Next(ctx) {
			pendingSettlements++
		}
	}

	breaker := h.paymentService.Breaker()

	return e.JSON(http.StatusOK, map[string]any{
		"generated_at":        time.Now().UTC(),
		"total_chats":         total,
		"chats_by_status":     byStatus,
		"pending_settlements": pendingSettlements,
		"payment_provider": map[string]any{
			"name":          breaker.Name(),
			"breaker_state": breaker.State().String(),
		},
	})
}
