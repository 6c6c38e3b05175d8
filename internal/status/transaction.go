package status

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a settled bank transfer as reported by the provider.
type Transaction struct {
	RefID         string          `json:"ref_id"`
	UUID          string          `json:"uuid"`
	FCCRef        string          `json:"fcc_ref"`
	Ccy           string          `json:"ccy"`
	Payer         string          `json:"payer"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FormQR is the input for generating a payment QR code.
type FormQR struct {
	Phone          string          `json:"phone"`
	ReferenceLabel string          `json:"reference_label"`
	TerminalLabel  string          `json:"terminal_label"`
	UUID           string          `json:"uuid"`
	Amount         decimal.Decimal `json:"amount"`
	MerchantID     string          `json:"merchant_id"`
}
