package bank

import (
	"context"

	"ticket-resale/internal/status"
)

// Provider identifies a payment provider.
type Provider string

const (
	ProviderJDB Provider = "jdb"
)

// Interface is the seam between the settlement flow and a concrete bank.
type Interface interface {
	// Provider returns the provider type.
	Provider() Provider

	// GenerateQR returns an EMV QR payload for the given form.
	GenerateQR(ctx context.Context, f *status.FormQR) (string, error)

	// CheckTransaction fetches the settlement status for a bill UUID.
	CheckTransaction(ctx context.Context, uuid string) (*status.Transaction, error)

	// SetTranChannel sets the channel receiving transaction notifications.
	SetTranChannel(ch chan *status.Transaction)

	// Unsubscribe stops listening for a bill's notifications.
	Unsubscribe(ctx context.Context, uuid string)
}
