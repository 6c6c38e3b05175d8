package models

import (
	"time"
)

// Ticket is a secondhand listing. Prices are whole currency units.
type Ticket struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	EventAt  time.Time `json:"event_at"`
	Price    int64     `json:"price"`
	SellerID string    `json:"seller_id"`
	Sold     bool      `json:"sold"`
	Created  time.Time `json:"created"`
}
