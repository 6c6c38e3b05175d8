package models

import (
	"time"
)

// MessageType tags an entry in a chat's timeline.
type MessageType string

const (
	MessageText         MessageType = "text"
	MessageOffer        MessageType = "offer"
	MessageCounterOffer MessageType = "counter_offer"
	MessageAccept       MessageType = "accept"
	MessageReject       MessageType = "reject"
	MessageSystem       MessageType = "system"
)

// Priced reports whether messages of this type carry an offer price.
func (t MessageType) Priced() bool {
	switch t {
	case MessageOffer, MessageCounterOffer, MessageAccept, MessageReject:
		return true
	}
	return false
}

// IsOffer reports whether the message puts a price on the table.
func (t MessageType) IsOffer() bool {
	return t == MessageOffer || t == MessageCounterOffer
}

type Message struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chat_id"`
	SenderID   string      `json:"sender_id"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	OfferPrice *int64      `json:"offer_price,omitempty"`
	Created    time.Time   `json:"created"`
}
