package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/catalog"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/inventory"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/ledger"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/notify"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Publish(ctx context.Context, c notify.Change) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func setupService(t *testing.T, n notify.Notifier) (*EventService, *prometheus.Registry) {
	t.Helper()
	cat, err := catalog.NewSeeded()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc := NewEventService(inventory.New(cat, ledger.New(), nil), Options{
		Metrics:           metrics.New(reg),
		Notifier:          n,
		ServiceFeePercent: 5,
	})
	return svc, reg
}

func TestRegister_NormalizesAndPublishes(t *testing.T) {
	n := &mockNotifier{}
	n.On("Publish", mock.Anything, mock.MatchedBy(func(c notify.Change) bool {
		return c.Kind == notify.KindRegistered && c.EventID == "2" && c.UserID == "u1" &&
			len(c.Tiers) == 1 && c.Tiers[0].Remaining == 119
	})).Return(nil).Once()
	svc, _ := setupService(t, n)

	rec, err := svc.Register(context.Background(), model.RegisterRequest{
		EventID:   "2",
		UserID:    " u1 ",
		UserName:  "  Sita Sharma ",
		UserEmail: " Sita@Example.COM ",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "Sita Sharma", rec.UserName)
	assert.Equal(t, "sita@example.com", rec.UserEmail)
	assert.True(t, rec.PricePaid.IsZero())
	n.AssertExpectations(t)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.RegisterRequest
		want error
	}{
		{"missing event", model.RegisterRequest{UserID: "u", UserEmail: "a@b.co"}, model.ErrValidation},
		{"missing user", model.RegisterRequest{EventID: "2", UserEmail: "a@b.co"}, model.ErrValidation},
		{"missing email", model.RegisterRequest{EventID: "2", UserID: "u"}, model.ErrValidation},
		{"bad email", model.RegisterRequest{EventID: "2", UserID: "u", UserEmail: "not-an-email"}, model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	negative := decimal.NewFromInt(-10)
	_, err := svc.Register(ctx, model.RegisterRequest{EventID: "5", UserID: "u", UserEmail: "a@b.co", Price: &negative})
	assert.ErrorIs(t, err, model.ErrInvalidPrice)
}

func TestPurchase_RecordsMetrics(t *testing.T) {
	n := &mockNotifier{}
	n.On("Publish", mock.Anything, mock.Anything).Return(nil)
	svc, reg := setupService(t, n)
	ctx := context.Background()

	rec, err := svc.PurchaseTickets(ctx, model.PurchaseRequest{
		EventID: "1", UserID: "u1", UserEmail: "u1@example.com",
		TicketType: "VIP", UnitPrice: decimal.NewFromInt(5000), Quantity: 3,
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15000).Equal(rec.Amount()))

	_, err = svc.PurchaseTickets(ctx, model.PurchaseRequest{
		EventID: "1", UserID: "u2", UserEmail: "u2@example.com",
		TicketType: "VVIP", UnitPrice: decimal.NewFromInt(12000), Quantity: 21,
	})
	assert.ErrorIs(t, err, model.ErrInsufficientCapacity)

	expected := `
# HELP inventory_operations_total Inventory operations by outcome
# TYPE inventory_operations_total counter
inventory_operations_total{operation="purchase",outcome="insufficient_capacity"} 1
inventory_operations_total{operation="purchase",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "inventory_operations_total"))
	n.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNotifyFailureDoesNotFailOperation(t *testing.T) {
	n := &mockNotifier{}
	n.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	svc, _ := setupService(t, n)
	ctx := context.Background()

	_, err := svc.Register(ctx, model.RegisterRequest{EventID: "5", UserID: "u1", UserEmail: "u1@example.com"})
	require.NoError(t, err)

	ok, err := svc.IsRegistered(ctx, "5", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnregister_PublishesReleasedQuantity(t *testing.T) {
	n := &mockNotifier{}
	n.On("Publish", mock.Anything, mock.MatchedBy(func(c notify.Change) bool {
		return c.Kind == notify.KindPurchased
	})).Return(nil)
	n.On("Publish", mock.Anything, mock.MatchedBy(func(c notify.Change) bool {
		return c.Kind == notify.KindUnregistered && c.Quantity == 3
	})).Return(nil).Once()
	svc, _ := setupService(t, n)
	ctx := context.Background()

	for _, tt := range []struct {
		ticketType string
		qty        int
	}{{"General", 2}, {"VIP", 1}} {
		_, err := svc.PurchaseTickets(ctx, model.PurchaseRequest{
			EventID: "3", UserID: "u1", UserEmail: "u1@example.com",
			TicketType: tt.ticketType, UnitPrice: decimal.NewFromInt(500), Quantity: tt.qty,
		})
		require.NoError(t, err)
	}

	cancelled, err := svc.UnregisterFromEvent(ctx, "3", "u1")
	require.NoError(t, err)
	assert.Len(t, cancelled, 2)
	n.AssertExpectations(t)

	_, err = svc.UnregisterFromEvent(ctx, "3", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestQuote(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	q, err := svc.Quote(ctx, "1", "VIP", 3)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(q.UnitPrice))
	assert.True(t, decimal.NewFromInt(15000).Equal(q.Subtotal))
	assert.True(t, decimal.NewFromInt(750).Equal(q.ServiceFee))
	assert.True(t, decimal.NewFromInt(15750).Equal(q.Total))
	assert.Equal(t, 80, q.Remaining)

	q, err = svc.Quote(ctx, "5", "", 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(q.ServiceFee))

	q, err = svc.Quote(ctx, "3", "General", 3)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(75).Equal(q.ServiceFee))

	_, err = svc.Quote(ctx, "1", "VVIP", 21)
	var capErr *model.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 20, capErr.Available)

	_, err = svc.Quote(ctx, "1", "Balcony", 1)
	assert.ErrorIs(t, err, model.ErrTicketNotFound)
	_, err = svc.Quote(ctx, "5", "VIP", 1)
	assert.ErrorIs(t, err, model.ErrTicketNotFound)
	_, err = svc.Quote(ctx, "1", "VIP", 0)
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)
	_, err = svc.Quote(ctx, "missing", "", 1)
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestQuote_RoundsFee(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	_, err := svc.RepriceTicket(ctx, "5", "", decimal.RequireFromString("333"))
	require.NoError(t, err)

	// 5% of 333 is 16.65.
	q, err := svc.Quote(ctx, "5", "", 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(17).Equal(q.ServiceFee), q.ServiceFee.String())
	assert.True(t, decimal.NewFromInt(350).Equal(q.Total), q.Total.String())
}

func TestCreateEvent(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	created, err := svc.CreateEvent(ctx, &model.Event{
		ID:    "ignored",
		Title: "  Janakpur Art Fair ",
		Admission: &model.Tiered{Tiers: []model.TicketTier{
			{Type: "General", Price: decimal.NewFromInt(300), Capacity: 100, RegisteredCount: 40},
		}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", created.ID)
	assert.Equal(t, "Janakpur Art Fair", created.Title)
	assert.Equal(t, model.StatusUpcoming, created.Status)
	assert.Zero(t, created.RegisteredCount())

	_, err = svc.CreateEvent(ctx, &model.Event{Title: "No tickets", Admission: &model.Tiered{}})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListEvents(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	events, err := svc.ListEvents(ctx, model.EventFilter{Province: " Bagmati "})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = svc.ListEvents(ctx, model.EventFilter{Status: "postponed"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestStats(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	_, err := svc.PurchaseTickets(ctx, model.PurchaseRequest{
		EventID: "1", UserID: "u1", UserEmail: "u1@example.com",
		TicketType: "VIP", UnitPrice: decimal.NewFromInt(5000), Quantity: 2,
	})
	require.NoError(t, err)
	_, err = svc.Register(ctx, model.RegisterRequest{EventID: "2", UserID: "u2", UserEmail: "u2@example.com"})
	require.NoError(t, err)

	sum, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TotalEvents)
	assert.Equal(t, 3, sum.TotalRegistrations)
	assert.True(t, decimal.NewFromInt(10000).Equal(sum.TotalRevenue))
	assert.Equal(t, "1", sum.TopEvents[0].EventID)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(model.ErrEventNotFound))
	assert.Equal(t, "insufficient_capacity", Outcome(&model.CapacityError{}))
	assert.Equal(t, "invalid", Outcome(model.ErrInvalidQuantity))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, isValidEmail("ram@example.com"))
	assert.False(t, isValidEmail("ram@localhost"))
	assert.False(t, isValidEmail("@example.com"))
	assert.False(t, isValidEmail("a@b@c.com"))
}
