package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/inventory"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// RegistrationRepository handles persistence for attendee records.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Register claims one place inside a transaction that holds the event row
// lock.
//
// SELECT … FOR UPDATE takes a row-level exclusive lock on the event. Any
// other transaction that tries to lock the same row waits until this one
// commits or rolls back, so the capacity check and the increment below
// can never interleave with another booking for the same event.
func (r *RegistrationRepository) Register(ctx context.Context, req model.RegisterRequest) (*model.Attendee, error) {
	if req.Price != nil && req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrInvalidPrice)
	}
	var rec *model.Attendee
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		e, err := loadEvent(ctx, tx, req.EventID, true)
		if err != nil {
			return err
		}
		if e.Status != model.StatusUpcoming {
			return fmt.Errorf("%w: status is %s", model.ErrEventClosed, e.Status)
		}

		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM attendees WHERE event_id = $1 AND user_id = $2 AND status = 'active')`,
			req.EventID, req.UserID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if exists {
			return model.ErrAlreadyRegistered
		}

		price, err := inventory.Claim(e, req.TicketType, 1, false)
		if err != nil {
			return err
		}
		if req.Price != nil {
			price = *req.Price
		}
		if err := writeCounter(ctx, tx, e, req.TicketType); err != nil {
			return err
		}
		rec = &model.Attendee{
			ID:         uuid.New().String(),
			EventID:    req.EventID,
			UserID:     req.UserID,
			UserName:   req.UserName,
			UserEmail:  req.UserEmail,
			TicketType: req.TicketType,
			PricePaid:  price,
			Quantity:   1,
			Status:     model.RegistrationActive,
			CreatedAt:  time.Now().UTC(),
		}
		return insertAttendee(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// PurchaseTickets claims req.Quantity tickets of one tier under the event
// row lock and records them as one attendee row.
func (r *RegistrationRepository) PurchaseTickets(ctx context.Context, req model.PurchaseRequest) (*model.Attendee, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", model.ErrInvalidQuantity, req.Quantity)
	}
	if req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit price must not be negative", model.ErrInvalidPrice)
	}
	var rec *model.Attendee
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		e, err := loadEvent(ctx, tx, req.EventID, true)
		if err != nil {
			return err
		}
		if e.Status != model.StatusUpcoming {
			return fmt.Errorf("%w: status is %s", model.ErrEventClosed, e.Status)
		}
		if _, err := inventory.Claim(e, req.TicketType, req.Quantity, true); err != nil {
			return err
		}
		if err := writeCounter(ctx, tx, e, req.TicketType); err != nil {
			return err
		}
		rec = &model.Attendee{
			ID:         uuid.New().String(),
			EventID:    req.EventID,
			UserID:     req.UserID,
			UserName:   req.UserName,
			UserEmail:  req.UserEmail,
			TicketType: req.TicketType,
			PricePaid:  req.UnitPrice,
			Quantity:   req.Quantity,
			Status:     model.RegistrationActive,
			CreatedAt:  time.Now().UTC(),
		}
		return insertAttendee(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UnregisterFromEvent cancels every active record of the pair and returns
// the quantities to their counters.
func (r *RegistrationRepository) UnregisterFromEvent(ctx context.Context, eventID, userID string) ([]model.Attendee, error) {
	var cancelled []model.Attendee
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		e, err := loadEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		rows, err := tx.Query(ctx,
			`SELECT `+attendeeColumns+`
			 FROM attendees
			 WHERE event_id = $1 AND user_id = $2 AND status = 'active'
			 ORDER BY seq`,
			eventID, userID,
		)
		if err != nil {
			return fmt.Errorf("list active registrations: %w", err)
		}
		active, err := scanAttendees(rows)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return model.ErrRegistrationNotFound
		}

		release := make(map[string]int)
		for _, a := range active {
			release[a.TicketType] += a.Quantity
		}
		if err := inventory.Release(e, release); err != nil {
			return err
		}
		for ticketType := range release {
			if err := writeCounter(ctx, tx, e, ticketType); err != nil {
				return err
			}
		}

		at := time.Now().UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE attendees SET status = 'cancelled', cancelled_at = $3
			 WHERE event_id = $1 AND user_id = $2 AND status = 'active'`,
			eventID, userID, at,
		); err != nil {
			return fmt.Errorf("cancel registrations: %w", err)
		}
		for _, a := range active {
			a.Status = model.RegistrationCancelled
			cancelledAt := at
			a.CancelledAt = &cancelledAt
			cancelled = append(cancelled, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// IsRegistered reports whether the pair holds an active record.
func (r *RegistrationRepository) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendees WHERE event_id = $1 AND user_id = $2 AND status = 'active')`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

// ListByEvent returns all records of an event in insertion order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Attendee, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE event_id = $1 ORDER BY seq`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return scanAttendees(rows)
}

// ListByUser returns all records of a user in insertion order.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]model.Attendee, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE user_id = $1 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}
	return scanAttendees(rows)
}

// Snapshot reads events and attendees in one repeatable-read transaction so
// counters and records come from the same point in time.
func (r *RegistrationRepository) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot events: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if err := attachTiers(ctx, tx, events); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx, `SELECT `+attendeeColumns+` FROM attendees ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("snapshot attendees: %w", err)
	}
	attendees, err := scanAttendees(rows)
	if err != nil {
		return nil, err
	}
	return &model.Snapshot{Events: events, Attendees: attendees, TakenAt: time.Now().UTC()}, nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (r *RegistrationRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// writeCounter persists the in-memory counter of one slot. The event row
// is locked, so writing the absolute value is safe.
func writeCounter(ctx context.Context, tx pgx.Tx, e *model.Event, ticketType string) error {
	switch a := e.Admission.(type) {
	case *model.Untiered:
		if _, err := tx.Exec(ctx,
			`UPDATE events SET registered_count = $2 WHERE id = $1`,
			e.ID, a.RegisteredCount,
		); err != nil {
			return fmt.Errorf("update registered_count: %w", err)
		}
	case *model.Tiered:
		t := e.Tier(ticketType)
		if t == nil {
			return model.ErrTicketNotFound
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ticket_tiers SET registered_count = $3 WHERE event_id = $1 AND type = $2`,
			e.ID, t.Type, t.RegisteredCount,
		); err != nil {
			return fmt.Errorf("update tier registered_count: %w", err)
		}
	}
	return nil
}

func insertAttendee(ctx context.Context, tx pgx.Tx, a *model.Attendee) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO attendees (id, event_id, user_id, user_name, user_email, ticket_type,
			price_paid, quantity, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)`,
		a.ID, a.EventID, a.UserID, a.UserName, a.UserEmail, a.TicketType,
		a.PricePaid.String(), a.Quantity, string(a.Status), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attendee: %w", err)
	}
	return nil
}
