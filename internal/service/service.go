// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the inventory backend.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/logger"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/notify"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/stats"
)

// Backend is the inventory store. inventory.Controller keeps everything in
// memory; repository.Store keeps it in PostgreSQL.
type Backend interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error)
	CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error)
	RepriceTicket(ctx context.Context, eventID, ticketType string, price decimal.Decimal) (*model.Event, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.Attendee, error)
	PurchaseTickets(ctx context.Context, req model.PurchaseRequest) (*model.Attendee, error)
	UnregisterFromEvent(ctx context.Context, eventID, userID string) ([]model.Attendee, error)
	IsRegistered(ctx context.Context, eventID, userID string) (bool, error)
	ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error)
	UserRegistrations(ctx context.Context, userID string) ([]model.Attendee, error)
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// Options carries the optional collaborators of an EventService.
type Options struct {
	Metrics           *metrics.Inventory
	Notifier          notify.Notifier
	Logger            *zap.Logger
	ServiceFeePercent float64
}

// EventService orchestrates event-related business operations.
type EventService struct {
	backend  Backend
	metrics  *metrics.Inventory
	notifier notify.Notifier
	log      *zap.Logger
	fee      decimal.Decimal
	now      func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(backend Backend, opts Options) *EventService {
	s := &EventService{
		backend:  backend,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		log:      opts.Logger,
		fee:      decimal.NewFromFloat(opts.ServiceFeePercent),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// ListEvents returns the events matching filter.
func (s *EventService) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Province = strings.TrimSpace(filter.Province)
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, filter.Status)
	}
	return s.backend.ListEvents(ctx, filter)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	return s.backend.GetEvent(ctx, id)
}

// CreateEvent validates the event and adds it to the catalog. New events
// start with no places claimed and get a generated id.
func (s *EventService) CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	e.ID = ""
	e.Title = strings.TrimSpace(e.Title)
	if e.Status == "" {
		e.Status = model.StatusUpcoming
	}
	switch a := e.Admission.(type) {
	case *model.Untiered:
		a.RegisteredCount = 0
	case *model.Tiered:
		for i := range a.Tiers {
			a.Tiers[i].RegisteredCount = 0
		}
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	created, err := s.backend.CreateEvent(ctx, e)
	if err != nil {
		return nil, err
	}
	s.logger(ctx).Info("event created",
		zap.String("event_id", created.ID), zap.Int("capacity", created.Capacity()))
	s.recordAvailability(created)
	return created, nil
}

// RepriceTicket changes the current price of one ticket type. Records that
// were already written keep the price they were sold at.
func (s *EventService) RepriceTicket(ctx context.Context, eventID, ticketType string, price decimal.Decimal) (*model.Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrInvalidPrice)
	}
	e, err := s.backend.RepriceTicket(ctx, eventID, ticketType, price)
	if err != nil {
		return nil, err
	}
	s.logger(ctx).Info("ticket repriced",
		zap.String("event_id", eventID), zap.String("ticket_type", ticketType), zap.String("price", price.String()))
	return e, nil
}

// Register validates the request and delegates the concurrency-safe claim
// to the backend.
func (s *EventService) Register(ctx context.Context, req model.RegisterRequest) (*model.Attendee, error) {
	start := s.now()
	if err := normalizeUser(&req.EventID, &req.UserID, &req.UserName, &req.UserEmail); err != nil {
		return nil, err
	}
	req.TicketType = strings.TrimSpace(req.TicketType)
	if req.Price != nil && req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrInvalidPrice)
	}

	rec, err := s.backend.Register(ctx, req)
	s.metrics.Observe(metrics.OpRegister, Outcome(err), s.now().Sub(start))
	if err != nil {
		s.logger(ctx).Debug("registration refused",
			zap.String("event_id", req.EventID), zap.String("user_id", req.UserID),
			zap.String("ticket_type", req.TicketType), zap.Error(err))
		return nil, err
	}

	s.logger(ctx).Info("user registered",
		zap.String("event_id", rec.EventID), zap.String("user_id", rec.UserID),
		zap.String("ticket_type", rec.TicketType), zap.String("price_paid", rec.PricePaid.String()))
	s.metrics.Claimed(rec.EventID, rec.TicketType, rec.Quantity)
	s.publish(ctx, notify.KindRegistered, rec.EventID, rec.UserID, rec.TicketType, rec.Quantity)
	return rec, nil
}

// PurchaseTickets validates the request and buys the tickets.
func (s *EventService) PurchaseTickets(ctx context.Context, req model.PurchaseRequest) (*model.Attendee, error) {
	start := s.now()
	if err := normalizeUser(&req.EventID, &req.UserID, &req.UserName, &req.UserEmail); err != nil {
		return nil, err
	}
	req.TicketType = strings.TrimSpace(req.TicketType)
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", model.ErrInvalidQuantity, req.Quantity)
	}
	if req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit price must not be negative", model.ErrInvalidPrice)
	}

	rec, err := s.backend.PurchaseTickets(ctx, req)
	s.metrics.Observe(metrics.OpPurchase, Outcome(err), s.now().Sub(start))
	if err != nil {
		s.logger(ctx).Debug("purchase refused",
			zap.String("event_id", req.EventID), zap.String("user_id", req.UserID),
			zap.String("ticket_type", req.TicketType), zap.Int("quantity", req.Quantity), zap.Error(err))
		return nil, err
	}

	s.logger(ctx).Info("tickets purchased",
		zap.String("event_id", rec.EventID), zap.String("user_id", rec.UserID),
		zap.String("ticket_type", rec.TicketType), zap.Int("quantity", rec.Quantity),
		zap.String("amount", rec.Amount().String()))
	s.metrics.Claimed(rec.EventID, rec.TicketType, rec.Quantity)
	s.publish(ctx, notify.KindPurchased, rec.EventID, rec.UserID, rec.TicketType, rec.Quantity)
	return rec, nil
}

// UnregisterFromEvent cancels every active record the user holds for the
// event.
func (s *EventService) UnregisterFromEvent(ctx context.Context, eventID, userID string) ([]model.Attendee, error) {
	start := s.now()
	eventID, userID = strings.TrimSpace(eventID), strings.TrimSpace(userID)
	if eventID == "" || userID == "" {
		return nil, fmt.Errorf("%w: event id and user id are required", model.ErrValidation)
	}

	cancelled, err := s.backend.UnregisterFromEvent(ctx, eventID, userID)
	s.metrics.Observe(metrics.OpUnregister, Outcome(err), s.now().Sub(start))
	if err != nil {
		s.logger(ctx).Debug("unregister refused",
			zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	released := 0
	for _, rec := range cancelled {
		s.metrics.Released(rec.EventID, rec.TicketType, rec.Quantity)
		released += rec.Quantity
	}
	s.logger(ctx).Info("user unregistered",
		zap.String("event_id", eventID), zap.String("user_id", userID),
		zap.Int("records", len(cancelled)), zap.Int("released", released))
	s.publish(ctx, notify.KindUnregistered, eventID, userID, "", released)
	return cancelled, nil
}

// IsRegistered reports whether the user holds an active record for the event.
func (s *EventService) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	return s.backend.IsRegistered(ctx, eventID, userID)
}

// ListAttendees returns all records of an event.
func (s *EventService) ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event id is required", model.ErrValidation)
	}
	return s.backend.ListAttendees(ctx, eventID)
}

// UserRegistrations returns all records of a user.
func (s *EventService) UserRegistrations(ctx context.Context, userID string) ([]model.Attendee, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	return s.backend.UserRegistrations(ctx, userID)
}

// Quote prices a ticket selection at the current catalog price.
func (s *EventService) Quote(ctx context.Context, eventID, ticketType string, quantity int) (*model.Quote, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", model.ErrInvalidQuantity, quantity)
	}
	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var unit decimal.Decimal
	var remaining int
	switch a := e.Admission.(type) {
	case *model.Untiered:
		if ticketType != "" {
			return nil, fmt.Errorf("%w: %q", model.ErrTicketNotFound, ticketType)
		}
		unit, remaining = a.Price, a.Remaining()
	case *model.Tiered:
		t := e.Tier(ticketType)
		if t == nil {
			return nil, fmt.Errorf("%w: %q", model.ErrTicketNotFound, ticketType)
		}
		unit, remaining = t.Price, t.Remaining()
	}
	if quantity > remaining {
		return nil, &model.CapacityError{TicketType: ticketType, Requested: quantity, Available: remaining}
	}

	subtotal := unit.Mul(decimal.NewFromInt(int64(quantity)))
	fee := subtotal.Mul(s.fee).Div(decimal.NewFromInt(100)).Round(0)
	return &model.Quote{
		EventID:    e.ID,
		TicketType: ticketType,
		UnitPrice:  unit,
		Quantity:   quantity,
		Subtotal:   subtotal,
		ServiceFee: fee,
		Total:      subtotal.Add(fee),
		Remaining:  remaining,
	}, nil
}

// Stats computes the dashboard summary from one consistent snapshot.
func (s *EventService) Stats(ctx context.Context) (stats.Summary, error) {
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("snapshot inventory: %w", err)
	}
	return stats.Compute(snap), nil
}

// Outcome classifies err for the operations metric.
func Outcome(err error) string {
	var capErr *model.CapacityError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, model.ErrEventFull):
		return "event_full"
	case errors.As(err, &capErr), errors.Is(err, model.ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, model.ErrEventClosed):
		return "event_closed"
	case errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInvalidPrice),
		errors.Is(err, model.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// publish sends the post-change availability of the event. A failure here
// never undoes the change.
func (s *EventService) publish(ctx context.Context, kind, eventID, userID, ticketType string, qty int) {
	e, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		s.logger(ctx).Warn("reload event for notification failed",
			zap.String("event_id", eventID), zap.Error(err))
		return
	}
	tiers := s.recordAvailability(e)
	change := notify.Change{
		Kind:       kind,
		EventID:    eventID,
		UserID:     userID,
		TicketType: ticketType,
		Quantity:   qty,
		Tiers:      tiers,
		OccurredAt: s.now(),
	}
	if err := s.notifier.Publish(ctx, change); err != nil {
		s.logger(ctx).Warn("publish availability failed",
			zap.String("event_id", eventID), zap.String("kind", kind), zap.Error(err))
	}
}

// recordAvailability updates the remaining gauge and returns the per-tier
// availability of e.
func (s *EventService) recordAvailability(e *model.Event) []notify.TierAvailability {
	var out []notify.TierAvailability
	switch a := e.Admission.(type) {
	case *model.Untiered:
		out = append(out, notify.TierAvailability{Capacity: a.Capacity, Remaining: a.Remaining()})
	case *model.Tiered:
		for i := range a.Tiers {
			t := &a.Tiers[i]
			out = append(out, notify.TierAvailability{TicketType: t.Type, Capacity: t.Capacity, Remaining: t.Remaining()})
		}
	}
	for _, t := range out {
		s.metrics.Remaining(e.ID, t.TicketType, t.Remaining)
	}
	return out
}

func (s *EventService) logger(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.log)
}

// normalizeUser trims the identifiers, lowercases the email and checks
// that everything required is present.
func normalizeUser(eventID, userID, name, email *string) error {
	*eventID = strings.TrimSpace(*eventID)
	*userID = strings.TrimSpace(*userID)
	*name = strings.TrimSpace(*name)
	*email = strings.TrimSpace(strings.ToLower(*email))
	switch {
	case *eventID == "":
		return fmt.Errorf("%w: event id is required", model.ErrValidation)
	case *userID == "":
		return fmt.Errorf("%w: user id is required", model.ErrValidation)
	case *email == "":
		return fmt.Errorf("%w: user email is required", model.ErrValidation)
	case !isValidEmail(*email):
		return fmt.Errorf("%w: user email is not a valid email address", model.ErrValidation)
	}
	return nil
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
