package handlers

import (
	"log/slog"
	"net/http"

	"ticket-resale/internal/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type ChatHandler struct {
	app            *pocketbase.PocketBase
	chatService    *services.ChatService
	messageService *services.MessageService
}

func NewChatHandler(app *pocketbase.PocketBase, chatService *services.ChatService, messageService *services.MessageService) *ChatHandler {
	return &ChatHandler{
		app:            app,
		chatService:    chatService,
		messageService: messageService,
	}
}

// CreateChat - Open a negotiation chat on a ticket listing
func (h *ChatHandler) CreateChat(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		TicketID string `json:"ticket_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketID == "" {
		return apis.NewBadRequestError("ticket_id is required", nil)
	}

	ctx := e.Request.Context()
	chat, err := h.chatService.CreateChat(ctx, req.TicketID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusCreated, chat)
}

// ListChats - All chats the caller participates in, most recently active first
func (h *ChatHandler) ListChats(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()
	chats, err := h.chatService.ListChatsForUser(ctx, e.Auth.Id)
	if err != nil {
		slog.Error("h.chatService.ListChatsForUser()", "user", e.Auth.Id, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"chats": chats})
}

// GetChat - Full chat detail with ticket and participant summaries
func (h *ChatHandler) GetChat(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	detail, err := h.chatService.GetChatByID(ctx, chatID)
	if err != nil {
		return apiError(err)
	}
	if !detail.Chat.IsParticipant(e.Auth.Id) {
		return apis.NewForbiddenError("Access denied", nil)
	}

	return e.JSON(http.StatusOK, detail)
}

// GetMessages - Full chat timeline, oldest first
func (h *ChatHandler) GetMessages(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	messages, err := h.messageService.ListForUser(ctx, chatID, e.Auth.Id)
	if err != nil {
		return apiError(err)
	}

	// Viewing the timeline counts as catching up.
	if err := h.chatService.MarkSeen(ctx, chatID, e.Auth.Id); err != nil {
		slog.Error("h.chatService.MarkSeen()", "chat_id", chatID, "user", e.Auth.Id, "error", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"messages": messages})
}

// MarkSeen - Record that the caller has viewed the chat up to now
func (h *ChatHandler) MarkSeen(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	chatID := e.Request.PathValue("chatId")
	ctx := e.Request.Context()

	if err := h.chatService.MarkSeen(ctx, chatID, e.Auth.Id); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Chat marked as seen"})
}
