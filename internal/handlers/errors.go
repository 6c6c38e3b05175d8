package handlers

import (
	"errors"
	"net/http"

	"ticket-resale/internal/status"

	"github.com/pocketbase/pocketbase/apis"
)

// apiError maps service sentinel errors to HTTP responses. Anything
// unrecognized becomes a 500 with a generic message.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrChatNotFound):
		return apis.NewNotFoundError("Chat not found", err)
	case errors.Is(err, status.ErrTicketNotFound):
		return apis.NewNotFoundError("Ticket not found", err)
	case errors.Is(err, status.ErrNotAuthorized):
		return apis.NewForbiddenError("Access denied", err)
	case errors.Is(err, status.ErrDuplicateChat):
		return apis.NewApiError(http.StatusConflict, "Chat already exists for this ticket", err)
	case errors.Is(err, status.ErrInvalidState):
		return apis.NewApiError(http.StatusConflict, "Action not allowed in current chat state", err)
	case errors.Is(err, status.ErrChatBusy):
		return apis.NewApiError(http.StatusConflict, "Chat is busy, try again", err)
	case errors.Is(err, status.ErrInvalidOffer):
		var offerErr *status.InvalidOfferError
		if errors.As(err, &offerErr) {
			return apis.NewBadRequestError(offerErr.Detail, err)
		}
		return apis.NewBadRequestError("Invalid offer", err)
	case errors.Is(err, status.ErrSelfNegotiation):
		return apis.NewBadRequestError("Cannot negotiate on your own ticket", err)
	case errors.Is(err, status.ErrTicketUnavailable):
		return apis.NewBadRequestError("Ticket is no longer available", err)
	default:
		return apis.NewInternalServerError("Something went wrong", err)
	}
}
