package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// Store is the PostgreSQL inventory backend. It exposes the same operations
// as the in-memory controller.
type Store struct {
	Events        *EventRepository
	Registrations *RegistrationRepository
	log           *zap.Logger
}

// NewStore wires both repositories on one pool.
func NewStore(db *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		Events:        NewEventRepository(db),
		Registrations: NewRegistrationRepository(db),
		log:           log,
	}
}

// SeedIfEmpty inserts events when the events table has no rows. It returns
// the number of events inserted.
func (s *Store) SeedIfEmpty(ctx context.Context, events []model.Event) (int, error) {
	n, err := s.Events.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for i := range events {
		if _, err := s.Events.Create(ctx, &events[i]); err != nil {
			return 0, err
		}
	}
	s.log.Info("seeded event catalog", zap.Int("events", len(events)))
	return len(events), nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.Events.GetByID(ctx, id)
}

func (s *Store) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	return s.Events.List(ctx, filter)
}

func (s *Store) CreateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	return s.Events.Create(ctx, e)
}

func (s *Store) RepriceTicket(ctx context.Context, eventID, ticketType string, price decimal.Decimal) (*model.Event, error) {
	return s.Events.Reprice(ctx, eventID, ticketType, price)
}

func (s *Store) Register(ctx context.Context, req model.RegisterRequest) (*model.Attendee, error) {
	return s.Registrations.Register(ctx, req)
}

func (s *Store) PurchaseTickets(ctx context.Context, req model.PurchaseRequest) (*model.Attendee, error) {
	return s.Registrations.PurchaseTickets(ctx, req)
}

func (s *Store) UnregisterFromEvent(ctx context.Context, eventID, userID string) ([]model.Attendee, error) {
	return s.Registrations.UnregisterFromEvent(ctx, eventID, userID)
}

func (s *Store) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	return s.Registrations.IsRegistered(ctx, eventID, userID)
}

// ListAttendees returns model.ErrEventNotFound for unknown events.
func (s *Store) ListAttendees(ctx context.Context, eventID string) ([]model.Attendee, error) {
	if _, err := s.Events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Registrations.ListByEvent(ctx, eventID)
}

func (s *Store) UserRegistrations(ctx context.Context, userID string) ([]model.Attendee, error) {
	return s.Registrations.ListByUser(ctx, userID)
}

func (s *Store) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return s.Registrations.Snapshot(ctx)
}
