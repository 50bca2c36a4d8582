// Package stats derives dashboard aggregates from a catalog+ledger snapshot.
// It never mutates state.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// Group aggregates a subset of events.
type Group struct {
	Events        int             `json:"events"`
	Registrations int             `json:"registrations"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// EventRevenue is one row of the top-events table.
type EventRevenue struct {
	EventID       string          `json:"eventId"`
	Title         string          `json:"title"`
	Registrations int             `json:"registrations"`
	Capacity      int             `json:"capacity"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// Summary is the full dashboard view.
type Summary struct {
	TotalEvents        int              `json:"totalEvents"`
	UpcomingEvents     int              `json:"upcomingEvents"`
	TotalRegistrations int              `json:"totalRegistrations"`
	TotalCapacity      int              `json:"totalCapacity"`
	OccupancyRate      float64          `json:"occupancyRate"`
	TotalRevenue       decimal.Decimal  `json:"totalRevenue"`
	AvgRevenuePerEvent decimal.Decimal  `json:"avgRevenuePerEvent"`
	ByProvince         map[string]Group `json:"byProvince"`
	ByCategory         map[string]Group `json:"byCategory"`
	TopEvents          []EventRevenue   `json:"topEvents"`
}

// TopN is the length of Summary.TopEvents.
const TopN = 5

// Compute folds a snapshot into a Summary. Registrations count active
// tickets; revenue sums pricePaid × quantity of active records.
func Compute(s *model.Snapshot) Summary {
	revenue := make(map[string]decimal.Decimal)
	for i := range s.Attendees {
		a := &s.Attendees[i]
		if a.Active() {
			revenue[a.EventID] = revenue[a.EventID].Add(a.Amount())
		}
	}

	sum := Summary{
		TotalRevenue: decimal.Zero,
		ByProvince:   make(map[string]Group),
		ByCategory:   make(map[string]Group),
	}
	rows := make([]EventRevenue, 0, len(s.Events))
	for i := range s.Events {
		e := &s.Events[i]
		regs := e.RegisteredCount()
		rev := revenue[e.ID]

		sum.TotalEvents++
		if e.Status == model.StatusUpcoming {
			sum.UpcomingEvents++
		}
		sum.TotalRegistrations += regs
		sum.TotalCapacity += e.Capacity()
		sum.TotalRevenue = sum.TotalRevenue.Add(rev)

		sum.ByProvince[e.Province] = fold(sum.ByProvince[e.Province], regs, rev)
		sum.ByCategory[e.Category] = fold(sum.ByCategory[e.Category], regs, rev)

		rows = append(rows, EventRevenue{
			EventID:       e.ID,
			Title:         e.Title,
			Registrations: regs,
			Capacity:      e.Capacity(),
			Revenue:       rev,
		})
	}

	if sum.TotalCapacity > 0 {
		sum.OccupancyRate = float64(sum.TotalRegistrations) / float64(sum.TotalCapacity) * 100
	}
	if sum.TotalEvents > 0 {
		sum.AvgRevenuePerEvent = sum.TotalRevenue.Div(decimal.NewFromInt(int64(sum.TotalEvents))).Round(2)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Revenue.GreaterThan(rows[j].Revenue)
	})
	if len(rows) > TopN {
		rows = rows[:TopN]
	}
	sum.TopEvents = rows
	return sum
}

func fold(g Group, regs int, rev decimal.Decimal) Group {
	g.Events++
	g.Registrations += regs
	g.Revenue = g.Revenue.Add(rev)
	return g
}
