package model

import "github.com/shopspring/decimal"

// User is the current user as supplied by the authentication collaborator.
// Role is opaque to the inventory core.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RegisterRequest registers one user for an event. TicketType is empty for
// untiered events. Price, when set, is the amount agreed with the payment
// collaborator; otherwise the current catalog price is recorded.
type RegisterRequest struct {
	EventID    string           `json:"-"`
	UserID     string           `json:"-"`
	UserName   string           `json:"userName"`
	UserEmail  string           `json:"userEmail"`
	TicketType string           `json:"ticketType,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

// PurchaseRequest buys Quantity tickets of one tier at UnitPrice.
type PurchaseRequest struct {
	EventID    string          `json:"-"`
	UserID     string          `json:"-"`
	UserName   string          `json:"userName"`
	UserEmail  string          `json:"userEmail"`
	TicketType string          `json:"ticketType"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
}

// RepriceRequest changes the price of one ticket tier.
type RepriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// Quote is the checkout price breakdown for a ticket selection.
type Quote struct {
	EventID    string          `json:"eventId"`
	TicketType string          `json:"ticketType,omitempty"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"serviceFee"`
	Total      decimal.Decimal `json:"total"`
	Remaining  int             `json:"remaining"`
}
