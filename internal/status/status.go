package status

import (
	"errors"
	"fmt"
)

var (
	// Chat creation preconditions.
	ErrDuplicateChat     = errors.New("chat: negotiation already exists for this ticket and buyer")
	ErrSelfNegotiation   = errors.New("chat: sellers cannot negotiate their own ticket")
	ErrTicketUnavailable = errors.New("chat: ticket is no longer available")

	// Lookup failures.
	ErrChatNotFound   = errors.New("chat: chat not found")
	ErrTicketNotFound = errors.New("ticket: ticket not found")

	// Negotiation action failures.
	ErrInvalidOffer  = errors.New("offer: invalid offer price")
	ErrNotAuthorized = errors.New("chat: sender is not allowed to perform this action")
	ErrInvalidState  = errors.New("chat: chat status does not permit this action")
	ErrChatBusy      = errors.New("chat: another action on this chat is in progress")

	// Settlement failures.
	ErrFailedPayment   = errors.New("payment: payment failed")
	ErrRefCodeNotFound = errors.New("ref code: ref code not found")
)

// OfferReason classifies why an offer price was rejected.
type OfferReason string

const (
	OfferNonPositive OfferReason = "non_positive"
	OfferTooHigh     OfferReason = "too_high"
	OfferTooLow      OfferReason = "too_low"
)

// InvalidOfferError carries the human-readable reason an offer price was
// refused. It unwraps to ErrInvalidOffer.
type InvalidOfferError struct {
	Reason OfferReason
	Detail string
}

func (e *InvalidOfferError) Error() string {
	return fmt.Sprintf("offer: %s (%s)", e.Detail, e.Reason)
}

func (e *InvalidOfferError) Unwrap() error { return ErrInvalidOffer }
