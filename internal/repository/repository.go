// Package repository implements the PostgreSQL inventory backend.
// It uses pgx directly (no ORM) and applies the same capacity rules as the
// in-memory controller.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const eventColumns = `id, title, description, category, province, event_date, event_time,
	location, organizer, image, status, tiered, price::text, capacity, registered_count, created_at`

const attendeeColumns = `id::text, event_id, user_id, user_name, user_email, ticket_type,
	price_paid::text, quantity, status, created_at, cancelled_at`

// EventRepository handles persistence for events and their ticket tiers.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event with its tiers in one transaction.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) (*model.Event, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	event := e.Clone()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	price, capacity, count, tiered := decimal.Zero, 0, 0, false
	switch a := event.Admission.(type) {
	case *model.Untiered:
		price, capacity, count = a.Price, a.Capacity, a.RegisteredCount
	case *model.Tiered:
		tiered = true
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO events (id, title, description, category, province, event_date, event_time,
			location, organizer, image, status, tiered, price, capacity, registered_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14, $15, $16)`,
		event.ID, event.Title, event.Description, event.Category, event.Province, event.Date, event.Time,
		event.Location, event.Organizer, event.Image, string(event.Status), tiered,
		price.String(), capacity, count, event.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: event %q already exists", model.ErrValidation, event.ID)
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if t, ok := event.Admission.(*model.Tiered); ok {
		for i, tier := range t.Tiers {
			benefits := tier.Benefits
			if benefits == nil {
				benefits = []string{}
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO ticket_tiers (event_id, type, position, price, capacity, registered_count, benefits, gradient)
				 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
				event.ID, tier.Type, i, tier.Price.String(), tier.Capacity, tier.RegisteredCount, benefits, tier.Gradient,
			)
			if err != nil {
				return nil, fmt.Errorf("insert ticket tier %q: %w", tier.Type, err)
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return event, nil
}

// GetByID returns a single event or model.ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return loadEvent(ctx, r.db, id, false)
}

// List returns matching events ordered by creation time.
func (r *EventRepository) List(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE ($1 = '' OR category = $1)
		   AND ($2 = '' OR status = $2)
		   AND ($3 = '' OR province = $3)
		 ORDER BY created_at ASC, id ASC`,
		f.Category, string(f.Status), f.Province,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if err := attachTiers(ctx, r.db, events); err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of stored events.
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Reprice changes the price of a tier, or of an untiered event when
// ticketType is empty.
func (r *EventRepository) Reprice(ctx context.Context, eventID, ticketType string, price decimal.Decimal) (*model.Event, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrInvalidPrice)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := loadEvent(ctx, tx, eventID, true)
	if err != nil {
		return nil, err
	}
	if ticketType == "" {
		if _, ok := e.Admission.(*model.Untiered); !ok {
			return nil, model.ErrTicketNotFound
		}
		_, err = tx.Exec(ctx, `UPDATE events SET price = $2::numeric WHERE id = $1`, eventID, price.String())
	} else {
		if e.Tier(ticketType) == nil {
			return nil, model.ErrTicketNotFound
		}
		_, err = tx.Exec(ctx,
			`UPDATE ticket_tiers SET price = $3::numeric WHERE event_id = $1 AND type = $2`,
			eventID, ticketType, price.String())
	}
	if err != nil {
		return nil, fmt.Errorf("update price: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return r.GetByID(ctx, eventID)
}

// loadEvent reads one event and its tiers. With forUpdate the event row is
// locked until the surrounding transaction ends.
func loadEvent(ctx context.Context, q querier, id string, forUpdate bool) (*model.Event, error) {
	sql := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, model.ErrEventNotFound
	}
	if err := attachTiers(ctx, q, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		var (
			e                    model.Event
			status, price        string
			tiered               bool
			capacity, registered int
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.Province, &e.Date, &e.Time,
			&e.Location, &e.Organizer, &e.Image, &status, &tiered, &price, &capacity, &registered, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Status = model.EventStatus(status)
		if tiered {
			e.Admission = &model.Tiered{}
		} else {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return nil, fmt.Errorf("parse event price: %w", err)
			}
			e.Admission = &model.Untiered{Price: p, Capacity: capacity, RegisteredCount: registered}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// attachTiers loads the tiers of every tiered event in events.
func attachTiers(ctx context.Context, q querier, events []model.Event) error {
	byID := make(map[string]*model.Tiered)
	var ids []string
	for i := range events {
		if t, ok := events[i].Admission.(*model.Tiered); ok {
			byID[events[i].ID] = t
			ids = append(ids, events[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := q.Query(ctx,
		`SELECT event_id, type, price::text, capacity, registered_count, benefits, gradient
		 FROM ticket_tiers
		 WHERE event_id = ANY($1)
		 ORDER BY event_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("list ticket tiers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			eventID, price string
			t              model.TicketTier
		)
		if err := rows.Scan(&eventID, &t.Type, &price, &t.Capacity, &t.RegisteredCount, &t.Benefits, &t.Gradient); err != nil {
			return fmt.Errorf("scan ticket tier: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("parse ticket price: %w", err)
		}
		byID[eventID].Tiers = append(byID[eventID].Tiers, t)
	}
	return rows.Err()
}

func scanAttendees(rows pgx.Rows) ([]model.Attendee, error) {
	defer rows.Close()
	out := make([]model.Attendee, 0)
	for rows.Next() {
		var (
			a             model.Attendee
			price, status string
		)
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.UserName, &a.UserEmail, &a.TicketType,
			&price, &a.Quantity, &status, &a.CreatedAt, &a.CancelledAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price paid: %w", err)
		}
		a.PricePaid = p
		a.Status = model.RegistrationStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
