// Package ledger records attendee registrations and purchases.
//
// Records are never deleted; cancellation flips their status. The ledger
// keeps insertion order and does not enforce business rules.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

type pairKey struct {
	eventID string
	userID  string
}

// Ledger is an append-only list of attendee records.
type Ledger struct {
	mu      sync.RWMutex
	records []*model.Attendee
	// active maps an (event, user) pair to indexes of its active records.
	active map[pairKey][]int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{active: make(map[pairKey][]int)}
}

// Append stores a copy of rec, assigning an ID and creation time when
// missing, and returns the stored copy.
func (l *Ledger) Append(rec model.Attendee) model.Attendee {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = model.RegistrationActive
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	stored := rec
	l.records = append(l.records, &stored)
	if stored.Active() {
		k := pairKey{rec.EventID, rec.UserID}
		l.active[k] = append(l.active[k], len(l.records)-1)
	}
	return stored
}

// FindActiveRegistration returns the oldest active record of the pair.
func (l *Ledger) FindActiveRegistration(eventID, userID string) (model.Attendee, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.active[pairKey{eventID, userID}]
	if len(idx) == 0 {
		return model.Attendee{}, false
	}
	return *l.records[idx[0]], true
}

// ActiveFor returns every active record of the pair in insertion order.
func (l *Ledger) ActiveFor(eventID, userID string) []model.Attendee {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.active[pairKey{eventID, userID}]
	out := make([]model.Attendee, 0, len(idx))
	for _, i := range idx {
		out = append(out, *l.records[i])
	}
	return out
}

// Cancel marks every active record of the pair as cancelled and returns
// the cancelled records. It fails with model.ErrRegistrationNotFound when
// the pair holds no active record.
func (l *Ledger) Cancel(eventID, userID string, at time.Time) ([]model.Attendee, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := pairKey{eventID, userID}
	idx := l.active[k]
	if len(idx) == 0 {
		return nil, model.ErrRegistrationNotFound
	}
	out := make([]model.Attendee, 0, len(idx))
	for _, i := range idx {
		rec := l.records[i]
		rec.Status = model.RegistrationCancelled
		cancelledAt := at
		rec.CancelledAt = &cancelledAt
		out = append(out, *rec)
	}
	delete(l.active, k)
	return out, nil
}

// ListByEvent returns the event's records in insertion order.
func (l *Ledger) ListByEvent(eventID string) []model.Attendee {
	return l.filter(func(a *model.Attendee) bool { return a.EventID == eventID })
}

// ListByUser returns the user's records in insertion order.
func (l *Ledger) ListByUser(userID string) []model.Attendee {
	return l.filter(func(a *model.Attendee) bool { return a.UserID == userID })
}

// All returns every record in insertion order.
func (l *Ledger) All() []model.Attendee {
	return l.filter(func(*model.Attendee) bool { return true })
}

// ActiveQuantity sums the quantities of active records per ticket type for
// one event. Untiered records are keyed by the empty string.
func (l *Ledger) ActiveQuantity(eventID string) map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int)
	for _, rec := range l.records {
		if rec.EventID == eventID && rec.Active() {
			out[rec.TicketType] += rec.Quantity
		}
	}
	return out
}

func (l *Ledger) filter(keep func(*model.Attendee) bool) []model.Attendee {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Attendee, 0)
	for _, rec := range l.records {
		if keep(rec) {
			c := *rec
			if rec.CancelledAt != nil {
				t := *rec.CancelledAt
				c.CancelledAt = &t
			}
			out = append(out, c)
		}
	}
	return out
}
