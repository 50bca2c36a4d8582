package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventView is the flat wire shape of an Event. Untiered events carry
// price/capacity/registeredCount; tiered events carry tickets and derived
// totals.
type EventView struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Province        string          `json:"province,omitempty"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	Location        string          `json:"location"`
	Organizer       string          `json:"organizer"`
	Image           string          `json:"image,omitempty"`
	Status          EventStatus     `json:"status"`
	Price           decimal.Decimal `json:"price"`
	Capacity        int             `json:"capacity"`
	RegisteredCount int             `json:"registeredCount"`
	Tickets         []TicketTier    `json:"tickets,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// View flattens e into its wire shape.
func (e *Event) View() EventView {
	v := EventView{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Category:        e.Category,
		Province:        e.Province,
		Date:            e.Date,
		Time:            e.Time,
		Location:        e.Location,
		Organizer:       e.Organizer,
		Image:           e.Image,
		Status:          e.Status,
		Capacity:        e.Capacity(),
		RegisteredCount: e.RegisteredCount(),
		CreatedAt:       e.CreatedAt,
	}
	switch a := e.Admission.(type) {
	case *Untiered:
		v.Price = a.Price
	case *Tiered:
		v.Price = e.StartingPrice()
		v.Tickets = e.Clone().Admission.(*Tiered).Tiers
	}
	return v
}

// Event converts the wire shape back into an Event. Presence of tickets
// selects the tiered admission; otherwise price and capacity are used.
func (v EventView) Event() *Event {
	e := &Event{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Category:    v.Category,
		Province:    v.Province,
		Date:        v.Date,
		Time:        v.Time,
		Location:    v.Location,
		Organizer:   v.Organizer,
		Image:       v.Image,
		Status:      v.Status,
		CreatedAt:   v.CreatedAt,
	}
	if len(v.Tickets) > 0 {
		tiers := make([]TicketTier, len(v.Tickets))
		copy(tiers, v.Tickets)
		e.Admission = &Tiered{Tiers: tiers}
	} else {
		e.Admission = &Untiered{
			Price:           v.Price,
			Capacity:        v.Capacity,
			RegisteredCount: v.RegisteredCount,
		}
	}
	return e
}

// MarshalJSON encodes the event using its flat view.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.View())
}

// UnmarshalJSON decodes the flat view.
func (e *Event) UnmarshalJSON(data []byte) error {
	var v EventView
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = *v.Event()
	return nil
}

// Validate checks the structural invariants of an event definition.
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, e.Status)
	}
	switch a := e.Admission.(type) {
	case *Untiered:
		if a.Price.IsNegative() {
			return fmt.Errorf("%w: price must not be negative", ErrValidation)
		}
		if a.Capacity <= 0 {
			return fmt.Errorf("%w: capacity must be a positive integer", ErrValidation)
		}
		if a.RegisteredCount < 0 || a.RegisteredCount > a.Capacity {
			return fmt.Errorf("%w: registered count %d outside 0..%d", ErrValidation, a.RegisteredCount, a.Capacity)
		}
	case *Tiered:
		if len(a.Tiers) == 0 {
			return fmt.Errorf("%w: at least one ticket tier is required", ErrValidation)
		}
		seen := make(map[string]bool, len(a.Tiers))
		for _, t := range a.Tiers {
			if t.Type == "" {
				return fmt.Errorf("%w: ticket type is required", ErrValidation)
			}
			if seen[t.Type] {
				return fmt.Errorf("%w: duplicate ticket type %q", ErrValidation, t.Type)
			}
			seen[t.Type] = true
			if t.Price.IsNegative() {
				return fmt.Errorf("%w: ticket %q price must not be negative", ErrValidation, t.Type)
			}
			if t.Capacity <= 0 {
				return fmt.Errorf("%w: ticket %q capacity must be a positive integer", ErrValidation, t.Type)
			}
			if t.RegisteredCount < 0 || t.RegisteredCount > t.Capacity {
				return fmt.Errorf("%w: ticket %q registered count %d outside 0..%d", ErrValidation, t.Type, t.RegisteredCount, t.Capacity)
			}
		}
	default:
		return fmt.Errorf("%w: admission is required", ErrValidation)
	}
	return nil
}
