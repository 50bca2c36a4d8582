package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tieredEvent() *Event {
	return &Event{
		ID:     "jazz",
		Title:  "Kathmandu Jazz Festival",
		Status: StatusUpcoming,
		Admission: &Tiered{Tiers: []TicketTier{
			{Type: "General", Price: decimal.NewFromInt(1500), Capacity: 300, RegisteredCount: 10, Benefits: []string{"Entry"}},
			{Type: "VIP", Price: decimal.NewFromInt(5000), Capacity: 80, RegisteredCount: 5},
		}},
	}
}

func TestEvent_DerivedTotals(t *testing.T) {
	e := tieredEvent()
	assert.Equal(t, 380, e.Capacity())
	assert.Equal(t, 15, e.RegisteredCount())
	assert.Equal(t, 365, e.Remaining())
	assert.False(t, e.IsFull())
	assert.False(t, e.IsFree())
	assert.True(t, decimal.NewFromInt(1500).Equal(e.StartingPrice()))

	free := &Event{Admission: &Untiered{Capacity: 2, RegisteredCount: 2}}
	assert.True(t, free.IsFree())
	assert.True(t, free.IsFull())
}

func TestEvent_Tier(t *testing.T) {
	e := tieredEvent()
	require.NotNil(t, e.Tier("VIP"))
	assert.Nil(t, e.Tier("VVIP"))
	assert.Nil(t, (&Event{Admission: &Untiered{}}).Tier("VIP"))
}

func TestEvent_CloneIsDeep(t *testing.T) {
	e := tieredEvent()
	c := e.Clone()
	c.Tier("VIP").RegisteredCount = 80
	c.Tier("General").Benefits[0] = "changed"

	assert.Equal(t, 5, e.Tier("VIP").RegisteredCount)
	assert.Equal(t, "Entry", e.Tier("General").Benefits[0])
}

func TestEvent_JSONShape(t *testing.T) {
	data, err := json.Marshal(tieredEvent())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(380), raw["capacity"])
	assert.Equal(t, float64(15), raw["registeredCount"])
	assert.Len(t, raw["tickets"], 2)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	_, tiered := back.Admission.(*Tiered)
	assert.True(t, tiered)
	assert.Equal(t, 15, back.RegisteredCount())

	untiered := []byte(`{"id":"w","title":"Workshop","status":"upcoming","price":"800","capacity":25}`)
	var u Event
	require.NoError(t, json.Unmarshal(untiered, &u))
	a, ok := u.Admission.(*Untiered)
	require.True(t, ok)
	assert.Equal(t, 25, a.Capacity)
	assert.True(t, decimal.NewFromInt(800).Equal(a.Price))
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *Event)
		ok     bool
	}{
		{name: "valid", mutate: func(*Event) {}, ok: true},
		{name: "missing title", mutate: func(e *Event) { e.Title = "" }},
		{name: "unknown status", mutate: func(e *Event) { e.Status = "postponed" }},
		{name: "duplicate tier", mutate: func(e *Event) { e.Tier("VIP").Type = "General" }},
		{name: "empty tier type", mutate: func(e *Event) { e.Tier("VIP").Type = "" }},
		{name: "negative price", mutate: func(e *Event) { e.Tier("VIP").Price = decimal.NewFromInt(-1) }},
		{name: "zero capacity", mutate: func(e *Event) { e.Tier("VIP").Capacity = 0 }},
		{name: "count above capacity", mutate: func(e *Event) { e.Tier("VIP").RegisteredCount = 81 }},
		{name: "no tiers", mutate: func(e *Event) { e.Admission = &Tiered{} }},
		{name: "no admission", mutate: func(e *Event) { e.Admission = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tieredEvent()
			tt.mutate(e)
			err := e.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEventFilter_Match(t *testing.T) {
	e := &Event{Category: "Music", Status: StatusUpcoming, Province: "Bagmati"}
	assert.True(t, EventFilter{}.Match(e))
	assert.True(t, EventFilter{Category: "Music", Province: "Bagmati"}.Match(e))
	assert.False(t, EventFilter{Status: StatusPast}.Match(e))
	assert.False(t, EventFilter{Province: "Koshi"}.Match(e))
}

func TestErrors(t *testing.T) {
	assert.ErrorIs(t, ErrEventNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrTicketNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrRegistrationNotFound, ErrNotFound)

	var err error = &CapacityError{TicketType: "VIP", Requested: 5, Available: 2}
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 2, capErr.Available)
	assert.Contains(t, err.Error(), "only 2 available")
}

func TestAttendee_Amount(t *testing.T) {
	a := Attendee{PricePaid: decimal.NewFromInt(5000), Quantity: 3, Status: RegistrationActive}
	assert.True(t, decimal.NewFromInt(15000).Equal(a.Amount()))
	assert.True(t, a.Active())
}
