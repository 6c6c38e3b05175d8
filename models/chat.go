package models

import (
	"time"
)

// ChatStatus is the lifecycle status of a negotiation chat.
type ChatStatus string

const (
	ChatActive    ChatStatus = "active"
	ChatAccepted  ChatStatus = "accepted"
	ChatRejected  ChatStatus = "rejected"
	ChatCompleted ChatStatus = "completed"
)

// Terminal reports whether no further negotiation actions are allowed.
func (s ChatStatus) Terminal() bool {
	return s == ChatAccepted || s == ChatRejected || s == ChatCompleted
}

type Chat struct {
	ID         string     `json:"id"`
	TicketID   string     `json:"ticket_id"`
	BuyerID    string     `json:"buyer_id"`
	SellerID   string     `json:"seller_id"`
	Status     ChatStatus `json:"status"`
	FinalPrice *int64     `json:"final_price,omitempty"`
	Created    time.Time  `json:"created"`
	Updated    time.Time  `json:"updated"`
}

// Counterparty returns the other participant of the chat, or "" if
// userID is not a participant.
func (c *Chat) Counterparty(userID string) string {
	switch userID {
	case c.BuyerID:
		return c.SellerID
	case c.SellerID:
		return c.BuyerID
	}
	return ""
}

func (c *Chat) IsParticipant(userID string) bool {
	return userID == c.BuyerID || userID == c.SellerID
}

// ChatSummary is a chat augmented for listing screens.
type ChatSummary struct {
	Chat        Chat     `json:"chat"`
	Ticket      *Ticket  `json:"ticket,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

// ChatDetail is a chat with denormalized participant summaries.
type ChatDetail struct {
	Chat   Chat         `json:"chat"`
	Ticket *Ticket      `json:"ticket,omitempty"`
	Buyer  *UserSummary `json:"buyer,omitempty"`
	Seller *UserSummary `json:"seller,omitempty"`
}

type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
