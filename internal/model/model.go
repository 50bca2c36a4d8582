// Package model defines the core domain types for event ticketing.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusPast      EventStatus = "past"
	StatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusPast, StatusCancelled:
		return true
	}
	return false
}

// Admission describes how an event sells its capacity. It is either
// *Untiered (a single price and capacity) or *Tiered (named ticket tiers).
type Admission interface {
	admission()
}

// Untiered is the admission of a simple event with one price and one capacity.
// A zero price means the event is free.
type Untiered struct {
	Price           decimal.Decimal
	Capacity        int
	RegisteredCount int
}

func (*Untiered) admission() {}

// Remaining returns the number of unclaimed places.
func (u *Untiered) Remaining() int {
	return u.Capacity - u.RegisteredCount
}

// Tiered is the admission of an event that sells named ticket tiers.
// The tier counters are the only stored counters for such events.
type Tiered struct {
	Tiers []TicketTier
}

func (*Tiered) admission() {}

// TicketTier is one purchasable ticket class of an event.
type TicketTier struct {
	Type            string          `json:"type"`
	Price           decimal.Decimal `json:"price"`
	Capacity        int             `json:"capacity"`
	RegisteredCount int             `json:"registeredCount"`
	Benefits        []string        `json:"benefits"`
	Gradient        string          `json:"gradient,omitempty"`
}

// Remaining returns the number of unsold tickets in the tier.
func (t *TicketTier) Remaining() int {
	return t.Capacity - t.RegisteredCount
}

// SoldOut returns true when the tier has no tickets left.
func (t *TicketTier) SoldOut() bool {
	return t.RegisteredCount >= t.Capacity
}

// Event represents a bookable event in the catalog.
type Event struct {
	ID          string
	Title       string
	Description string
	Category    string
	Province    string
	Date        string
	Time        string
	Location    string
	Organizer   string
	Image       string
	Status      EventStatus
	Admission   Admission
	CreatedAt   time.Time
}

// Capacity returns the overall capacity. For tiered events it is the sum
// of the tier capacities.
func (e *Event) Capacity() int {
	switch a := e.Admission.(type) {
	case *Untiered:
		return a.Capacity
	case *Tiered:
		total := 0
		for _, t := range a.Tiers {
			total += t.Capacity
		}
		return total
	}
	return 0
}

// RegisteredCount returns the overall number of claimed places. For tiered
// events it is derived from the tier counters.
func (e *Event) RegisteredCount() int {
	switch a := e.Admission.(type) {
	case *Untiered:
		return a.RegisteredCount
	case *Tiered:
		total := 0
		for _, t := range a.Tiers {
			total += t.RegisteredCount
		}
		return total
	}
	return 0
}

// Remaining returns the number of available places across the event.
func (e *Event) Remaining() int {
	return e.Capacity() - e.RegisteredCount()
}

// IsFull returns true when no places remain.
func (e *Event) IsFull() bool {
	return e.RegisteredCount() >= e.Capacity()
}

// IsFree reports whether the event is an untiered event with a zero price.
func (e *Event) IsFree() bool {
	u, ok := e.Admission.(*Untiered)
	return ok && u.Price.IsZero()
}

// Tier returns the tier with the given type, or nil when the event is
// untiered or has no such tier.
func (e *Event) Tier(ticketType string) *TicketTier {
	t, ok := e.Admission.(*Tiered)
	if !ok {
		return nil
	}
	for i := range t.Tiers {
		if t.Tiers[i].Type == ticketType {
			return &t.Tiers[i]
		}
	}
	return nil
}

// StartingPrice is the cheapest price a visitor can pay to attend.
func (e *Event) StartingPrice() decimal.Decimal {
	switch a := e.Admission.(type) {
	case *Untiered:
		return a.Price
	case *Tiered:
		if len(a.Tiers) == 0 {
			return decimal.Zero
		}
		min := a.Tiers[0].Price
		for _, t := range a.Tiers[1:] {
			if t.Price.LessThan(min) {
				min = t.Price
			}
		}
		return min
	}
	return decimal.Zero
}

// Clone returns a deep copy so callers never share mutable state with
// the owner of the original.
func (e *Event) Clone() *Event {
	c := *e
	switch a := e.Admission.(type) {
	case *Untiered:
		u := *a
		c.Admission = &u
	case *Tiered:
		tiers := make([]TicketTier, len(a.Tiers))
		for i, t := range a.Tiers {
			t.Benefits = append([]string(nil), t.Benefits...)
			tiers[i] = t
		}
		c.Admission = &Tiered{Tiers: tiers}
	}
	return &c
}

// EventFilter narrows catalog listings. Empty fields match everything.
type EventFilter struct {
	Category string
	Status   EventStatus
	Province string
}

// Match reports whether e passes the filter.
func (f EventFilter) Match(e *Event) bool {
	if f.Category != "" && f.Category != e.Category {
		return false
	}
	if f.Status != "" && f.Status != e.Status {
		return false
	}
	if f.Province != "" && f.Province != e.Province {
		return false
	}
	return true
}

// RegistrationStatus is the state of an attendee record.
type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "active"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Attendee is a registration or purchase record in the ledger.
// PricePaid is the unit price at the time of the operation.
type Attendee struct {
	ID          string             `json:"id"`
	EventID     string             `json:"eventId"`
	UserID      string             `json:"userId"`
	UserName    string             `json:"userName"`
	UserEmail   string             `json:"userEmail"`
	TicketType  string             `json:"ticketType,omitempty"`
	PricePaid   decimal.Decimal    `json:"pricePaid"`
	Quantity    int                `json:"quantity"`
	Status      RegistrationStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	CancelledAt *time.Time         `json:"cancelledAt,omitempty"`
}

// Active reports whether the record still holds capacity.
func (a *Attendee) Active() bool {
	return a.Status == RegistrationActive
}

// Amount is the total paid for the record.
func (a *Attendee) Amount() decimal.Decimal {
	return a.PricePaid.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

// Snapshot is a consistent copy of the catalog and the ledger.
type Snapshot struct {
	Events    []Event
	Attendees []Attendee
	TakenAt   time.Time
}
