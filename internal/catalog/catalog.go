// Package catalog holds the set of events and their ticket tiers.
//
// Readers always receive deep copies. The only way to change counters is
// Update, which the inventory controller calls while it holds the event lock.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

//go:embed seed.json
var seedJSON []byte

// Catalog is an in-memory, insertion-ordered event store.
type Catalog struct {
	mu     sync.RWMutex
	events map[string]*model.Event
	order  []string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{events: make(map[string]*model.Event)}
}

// Seed decodes the embedded demo catalog.
func Seed() ([]model.Event, error) {
	var events []model.Event
	if err := json.Unmarshal(seedJSON, &events); err != nil {
		return nil, fmt.Errorf("decode seed catalog: %w", err)
	}
	return events, nil
}

// NewSeeded returns a catalog loaded with the embedded demo events.
func NewSeeded() (*Catalog, error) {
	events, err := Seed()
	if err != nil {
		return nil, err
	}
	c := New()
	for i := range events {
		if _, err := c.Add(context.Background(), &events[i]); err != nil {
			return nil, fmt.Errorf("seed event %q: %w", events[i].ID, err)
		}
	}
	return c, nil
}

// Add validates and stores a new event. A missing ID is generated.
func (c *Catalog) Add(_ context.Context, e *model.Event) (*model.Event, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	stored := e.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.events[stored.ID]; exists {
		return nil, fmt.Errorf("%w: event %q already exists", model.ErrValidation, stored.ID)
	}
	c.events[stored.ID] = stored
	c.order = append(c.order, stored.ID)
	return stored.Clone(), nil
}

// GetByID returns a copy of the event or model.ErrEventNotFound.
func (c *Catalog) GetByID(id string) (*model.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return e.Clone(), nil
}

// List returns copies of matching events in insertion order.
func (c *Catalog) List(filter model.EventFilter) []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Event, 0, len(c.order))
	for _, id := range c.order {
		e := c.events[id]
		if filter.Match(e) {
			out = append(out, *e.Clone())
		}
	}
	return out
}

// Update runs fn against the stored event under the write lock. fn must
// validate before it mutates: when it returns an error the event must be
// left untouched.
func (c *Catalog) Update(id string, fn func(*model.Event) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[id]
	if !ok {
		return model.ErrEventNotFound
	}
	return fn(e)
}

// Reprice changes a tier's price. Ledger records keep the price they were
// created with.
func (c *Catalog) Reprice(eventID, ticketType string, price decimal.Decimal) (*model.Event, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrInvalidPrice)
	}
	var updated *model.Event
	err := c.Update(eventID, func(e *model.Event) error {
		if ticketType == "" {
			u, ok := e.Admission.(*model.Untiered)
			if !ok {
				return model.ErrTicketNotFound
			}
			u.Price = price
		} else {
			t := e.Tier(ticketType)
			if t == nil {
				return model.ErrTicketNotFound
			}
			t.Price = price
		}
		updated = e.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Len returns the number of events.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
