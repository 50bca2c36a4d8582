// Package inventory is the only writer of ticket counters and attendee
// status. Every operation checks capacity and mutates the catalog and the
// ledger as one step.
//
// ─────────────────────────────────────────────────────────────────────────────
// LOCKING
// ─────────────────────────────────────────────────────────────────────────────
//
// Check-then-increment is a race when two callers run it at once:
//
//	caller A: tier VIP registeredCount=9, capacity=10 → OK
//	caller B: tier VIP registeredCount=9, capacity=10 → OK
//	caller A: registeredCount=10
//	caller B: registeredCount=11   OVERSOLD
//
// Each mutation therefore holds a per-event mutex for the whole
// check-and-update sequence. Mutations also share the read side of a
// controller-wide gate; Snapshot takes the write side, so a snapshot never
// sees a counter that disagrees with the ledger.
// ─────────────────────────────────────────────────────────────────────────────
package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/catalog"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/ledger"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// Controller owns a catalog and a ledger.
type Controller struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	log     *zap.Logger
	now     func() time.Time

	gate  sync.RWMutex
	locks sync.Map // event id -> *sync.Mutex
}

// New constructs a Controller. A nil logger disables logging.
func New(cat *catalog.Catalog, led *ledger.Ledger, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		catalog: cat,
		ledger:  led,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// lockEvent serialises mutations of one event and holds off snapshots.
// Unknown events are refused before a mutex is allocated for them.
func (c *Controller) lockEvent(eventID string) (func(), error) {
	if _, err := c.catalog.GetByID(eventID); err != nil {
		return nil, err
	}
	c.gate.RLock()
	m, _ := c.locks.LoadOrStore(eventID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return func() {
		mu.Unlock()
		c.gate.RUnlock()
	}, nil
}

// GetEvent returns a copy of the event.
func (c *Controller) GetEvent(_ context.Context, id string) (*model.Event, error) {
	return c.catalog.GetByID(id)
}

// ListEvents returns copies of the matching events in catalog order.
func (c *Controller) ListEvents(_ context.Context, filter model.EventFilter) ([]model.Event, error) {
	return c.catalog.List(filter), nil
}

// CreateEvent adds an organizer-defined event to the catalog.
func (c *Controller) CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	return c.catalog.Add(ctx, e)
}

// RepriceTicket changes the current price of a tier (or of an untiered
// event when ticketType is empty). Existing records keep their price.
func (c *Controller) RepriceTicket(_ context.Context, eventID, ticketType string, price decimal.Decimal) (*model.Event, error) {
	unlock, err := c.lockEvent(eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.catalog.Reprice(eventID, ticketType, price)
}

// Register claims one place for a user. It refuses users that already
// hold an active record for the event.
func (c *Controller) Register(_ context.Context, req model.RegisterRequest) (*model.Attendee, error) {
	if req.Price != nil && req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrInvalidPrice)
	}

	unlock, err := c.lockEvent(req.EventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var rec model.Attendee
	err = c.catalog.Update(req.EventID, func(e *model.Event) error {
		if e.Status != model.StatusUpcoming {
			return fmt.Errorf("%w: status is %s", model.ErrEventClosed, e.Status)
		}
		if _, ok := c.ledger.FindActiveRegistration(req.EventID, req.UserID); ok {
			return model.ErrAlreadyRegistered
		}
		price, err := Claim(e, req.TicketType, 1, false)
		if err != nil {
			return err
		}
		if req.Price != nil {
			price = *req.Price
		}
		rec = c.ledger.Append(model.Attendee{
			EventID:    req.EventID,
			UserID:     req.UserID,
			UserName:   req.UserName,
			UserEmail:  req.UserEmail,
			TicketType: req.TicketType,
			PricePaid:  price,
			Quantity:   1,
			Status:     model.RegistrationActive,
			CreatedAt:  c.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PurchaseTickets buys req.Quantity tickets of one tier as a single record
// carrying the quantity. Purchases are independent of each other: a user
// may buy more than once.
func (c *Controller) PurchaseTickets(_ context.Context, req model.PurchaseRequest) (*model.Attendee, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", model.ErrInvalidQuantity, req.Quantity)
	}
	if req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit price must not be negative", model.ErrInvalidPrice)
	}

	unlock, err := c.lockEvent(req.EventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var rec model.Attendee
	err = c.catalog.Update(req.EventID, func(e *model.Event) error {
		if e.Status != model.StatusUpcoming {
			return fmt.Errorf("%w: status is %s", model.ErrEventClosed, e.Status)
		}
		if _, err := Claim(e, req.TicketType, req.Quantity, true); err != nil {
			return err
		}
		rec = c.ledger.Append(model.Attendee{
			EventID:    req.EventID,
			UserID:     req.UserID,
			UserName:   req.UserName,
			UserEmail:  req.UserEmail,
			TicketType: req.TicketType,
			PricePaid:  req.UnitPrice,
			Quantity:   req.Quantity,
			Status:     model.RegistrationActive,
			CreatedAt:  c.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UnregisterFromEvent cancels every active record the user holds for the
// event and returns their quantities to the counters they came from.
func (c *Controller) UnregisterFromEvent(_ context.Context, eventID, userID string) ([]model.Attendee, error) {
	unlock, err := c.lockEvent(eventID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var cancelled []model.Attendee
	err = c.catalog.Update(eventID, func(e *model.Event) error {
		active := c.ledger.ActiveFor(eventID, userID)
		if len(active) == 0 {
			return model.ErrRegistrationNotFound
		}
		release := make(map[string]int)
		for _, rec := range active {
			release[rec.TicketType] += rec.Quantity
		}
		if err := Release(e, release); err != nil {
			c.log.Error("ledger and catalog disagree",
				zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
			return err
		}
		var err error
		cancelled, err = c.ledger.Cancel(eventID, userID, c.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// IsRegistered reports whether the user holds an active record.
func (c *Controller) IsRegistered(_ context.Context, eventID, userID string) (bool, error) {
	_, ok := c.ledger.FindActiveRegistration(eventID, userID)
	return ok, nil
}

// ListAttendees returns the event's records in insertion order.
func (c *Controller) ListAttendees(_ context.Context, eventID string) ([]model.Attendee, error) {
	if _, err := c.catalog.GetByID(eventID); err != nil {
		return nil, err
	}
	return c.ledger.ListByEvent(eventID), nil
}

// UserRegistrations returns all records of a user in insertion order.
func (c *Controller) UserRegistrations(_ context.Context, userID string) ([]model.Attendee, error) {
	return c.ledger.ListByUser(userID), nil
}

// Snapshot copies the catalog and the ledger while no mutation is in flight.
func (c *Controller) Snapshot(_ context.Context) (*model.Snapshot, error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	return &model.Snapshot{
		Events:    c.catalog.List(model.EventFilter{}),
		Attendees: c.ledger.All(),
		TakenAt:   c.now(),
	}, nil
}
