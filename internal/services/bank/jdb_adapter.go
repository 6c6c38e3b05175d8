package bank

import (
	"context"

	"ticket-resale/internal/services/bank/jdb"
	"ticket-resale/internal/status"
)

// jdbAdapter adapts the YesPay client to the provider-neutral Interface.
type jdbAdapter struct {
	yespay *jdb.Yespay
}

// NewJDB wraps a YesPay client. Returns nil if the client is nil
// (bank integration not configured).
func NewJDB(y *jdb.Yespay) Interface {
	if y == nil {
		return nil
	}
	return &jdbAdapter{yespay: y}
}

func (a *jdbAdapter) Provider() Provider {
	return ProviderJDB
}

func (a *jdbAdapter) GenerateQR(ctx context.Context, f *status.FormQR) (string, error) {
	return a.yespay.GenQRCode(ctx, f)
}

func (a *jdbAdapter) CheckTransaction(ctx context.Context, uuid string) (*status.Transaction, error) {
	return a.yespay.CheckTransaction(ctx, uuid)
}

func (a *jdbAdapter) SetTranChannel(ch chan *status.Transaction) {
	a.yespay.SetTranChannel(ch)
}

func (a *jdbAdapter) Unsubscribe(ctx context.Context, uuid string) {
	a.yespay.Unsubscribe(ctx, uuid)
}
