package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// slot is one capacity counter of an event: the untiered counter or a tier.
type slot struct {
	label    string
	capacity int
	count    *int
	price    decimal.Decimal
}

func (s slot) remaining() int { return s.capacity - *s.count }

func (s slot) add(n int) { *s.count += n }

func lookup(e *model.Event, ticketType string) (slot, error) {
	switch a := e.Admission.(type) {
	case *model.Untiered:
		if ticketType != "" {
			return slot{}, fmt.Errorf("%w: event %s has no ticket tiers", model.ErrTicketNotFound, e.ID)
		}
		return slot{label: "event", capacity: a.Capacity, count: &a.RegisteredCount, price: a.Price}, nil
	case *model.Tiered:
		if ticketType == "" {
			return slot{}, fmt.Errorf("%w: a ticket type is required for event %s", model.ErrTicketNotFound, e.ID)
		}
		t := e.Tier(ticketType)
		if t == nil {
			return slot{}, fmt.Errorf("%w: %q on event %s", model.ErrTicketNotFound, ticketType, e.ID)
		}
		return slot{label: t.Type, capacity: t.Capacity, count: &t.RegisteredCount, price: t.Price}, nil
	}
	return slot{}, fmt.Errorf("event %s has no admission", e.ID)
}

// Claim checks that qty places remain in the slot for ticketType and takes
// them. It returns the slot's current price. Nothing changes on error.
// A refused register reports model.ErrEventFull; a refused purchase reports
// a *model.CapacityError.
func Claim(e *model.Event, ticketType string, qty int, purchase bool) (decimal.Decimal, error) {
	s, err := lookup(e, ticketType)
	if err != nil {
		return decimal.Zero, err
	}
	if avail := s.remaining(); qty > avail {
		if !purchase {
			return decimal.Zero, model.ErrEventFull
		}
		if avail < 0 {
			avail = 0
		}
		return decimal.Zero, &model.CapacityError{TicketType: s.label, Requested: qty, Available: avail}
	}
	s.add(qty)
	return s.price, nil
}

// Release returns the given quantities (keyed by ticket type) to their
// counters. It verifies every counter first and changes nothing on error.
func Release(e *model.Event, release map[string]int) error {
	slots := make(map[string]slot, len(release))
	for ticketType, qty := range release {
		s, err := lookup(e, ticketType)
		if err != nil {
			return err
		}
		if *s.count < qty {
			return fmt.Errorf("release of %d from %s would leave %d", qty, s.label, *s.count-qty)
		}
		slots[ticketType] = s
	}
	for ticketType, qty := range release {
		slots[ticketType].add(-qty)
	}
	return nil
}

// CheckInvariants verifies a snapshot: every counter stays within
// 0..capacity and equals the sum of the active ledger quantities drawn
// from it.
func CheckInvariants(s *model.Snapshot) error {
	active := make(map[string]map[string]int)
	for _, a := range s.Attendees {
		if !a.Active() {
			continue
		}
		if active[a.EventID] == nil {
			active[a.EventID] = make(map[string]int)
		}
		active[a.EventID][a.TicketType] += a.Quantity
	}

	for i := range s.Events {
		e := &s.Events[i]
		held := active[e.ID]
		switch a := e.Admission.(type) {
		case *model.Untiered:
			if err := checkCounter(e.ID, "event", a.RegisteredCount, a.Capacity, held[""]); err != nil {
				return err
			}
			delete(held, "")
		case *model.Tiered:
			for _, t := range a.Tiers {
				if err := checkCounter(e.ID, t.Type, t.RegisteredCount, t.Capacity, held[t.Type]); err != nil {
					return err
				}
				delete(held, t.Type)
			}
		}
		for ticketType, qty := range held {
			if qty > 0 {
				return fmt.Errorf("event %s: %d active tickets reference unknown ticket type %q", e.ID, qty, ticketType)
			}
		}
		delete(active, e.ID)
	}
	for eventID := range active {
		return fmt.Errorf("active records reference unknown event %s", eventID)
	}
	return nil
}

func checkCounter(eventID, label string, count, capacity, held int) error {
	if count < 0 || count > capacity {
		return fmt.Errorf("event %s %s: registered count %d outside 0..%d", eventID, label, count, capacity)
	}
	if count != held {
		return fmt.Errorf("event %s %s: registered count %d but ledger holds %d", eventID, label, count, held)
	}
	return nil
}
