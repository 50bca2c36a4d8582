// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/logger"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/service"
)

// EventHandler holds all HTTP handlers for the ticketing API.
type EventHandler struct {
	svc *service.EventService
	log *zap.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, log *zap.Logger) *EventHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventHandler{svc: svc, log: log}
}

func (h *EventHandler) logger(r *http.Request) *zap.Logger {
	return logger.FromContext(r.Context(), h.log)
}

// ListEvents handles GET /events
// Optional query parameters: category, status, province.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{
		Category: q.Get("category"),
		Status:   model.EventStatus(q.Get("status")),
		Province: q.Get("province"),
	}
	events, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeData(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusOK, event)
}

// CreateEvent handles POST /events
// The body is the event wire shape; tickets select a tiered event.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var e model.Event
	if err := decodeJSON(w, r, &e); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid request body: "+err.Error())
		return
	}
	if u, ok := CurrentUser(r.Context()); ok && e.Organizer == "" {
		e.Organizer = u.Name
	}

	created, err := h.svc.CreateEvent(r.Context(), &e)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

// RepriceTicket handles PUT /events/{id}/tickets/{type}/price
func (h *EventHandler) RepriceTicket(w http.ResponseWriter, r *http.Request) {
	h.reprice(w, r, chi.URLParam(r, "type"))
}

// RepriceEvent handles PUT /events/{id}/price for untiered events.
func (h *EventHandler) RepriceEvent(w http.ResponseWriter, r *http.Request) {
	h.reprice(w, r, "")
}

func (h *EventHandler) reprice(w http.ResponseWriter, r *http.Request, ticketType string) {
	var req model.RepriceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid request body: "+err.Error())
		return
	}
	event, err := h.svc.RepriceTicket(r.Context(), chi.URLParam(r, "id"), ticketType, req.Price)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusOK, event)
}

// Quote handles GET /events/{id}/quote?ticketType=&quantity=
// quantity defaults to 1.
func (h *EventHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quantity := 1
	if raw := q.Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidQuantity, "quantity must be an integer")
			return
		}
		quantity = n
	}
	quote, err := h.svc.Quote(r.Context(), chi.URLParam(r, "id"), q.Get("ticketType"), quantity)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusOK, quote)
}

// Register handles POST /events/{id}/register
// Performs a concurrency-safe registration for the current user.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid request body: "+err.Error())
		return
	}
	u, _ := CurrentUser(r.Context())
	req.EventID = chi.URLParam(r, "id")
	req.UserID = u.ID
	req.UserName = firstNonEmpty(u.Name, req.UserName)
	req.UserEmail = firstNonEmpty(u.Email, req.UserEmail)

	rec, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

type purchaseBody struct {
	TicketType string           `json:"ticketType"`
	Quantity   int              `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unitPrice,omitempty"`
	UserName   string           `json:"userName,omitempty"`
	UserEmail  string           `json:"userEmail,omitempty"`
}

// Purchase handles POST /events/{id}/purchase
// Without unitPrice the current catalog price is charged.
func (h *EventHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var body purchaseBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid request body: "+err.Error())
		return
	}
	eventID := chi.URLParam(r, "id")

	var unit decimal.Decimal
	if body.UnitPrice != nil {
		unit = *body.UnitPrice
	} else {
		quote, err := h.svc.Quote(r.Context(), eventID, body.TicketType, body.Quantity)
		if err != nil {
			writeDomainError(w, h.logger(r), err)
			return
		}
		unit = quote.UnitPrice
	}

	u, _ := CurrentUser(r.Context())
	rec, err := h.svc.PurchaseTickets(r.Context(), model.PurchaseRequest{
		EventID:    eventID,
		UserID:     u.ID,
		UserName:   firstNonEmpty(u.Name, body.UserName),
		UserEmail:  firstNonEmpty(u.Email, body.UserEmail),
		TicketType: body.TicketType,
		UnitPrice:  unit,
		Quantity:   body.Quantity,
	})
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

// Unregister handles DELETE /events/{id}/registration
func (h *EventHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	cancelled, err := h.svc.UnregisterFromEvent(r.Context(), chi.URLParam(r, "id"), u.ID)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusOK, cancelled)
}

// RegistrationStatus handles GET /events/{id}/registration
func (h *EventHandler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	ok, err := h.svc.IsRegistered(r.Context(), chi.URLParam(r, "id"), u.ID)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"registered": ok})
}

// ListAttendees handles GET /events/{id}/attendees
func (h *EventHandler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListAttendees(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	if regs == nil {
		regs = []model.Attendee{}
	}
	writeData(w, http.StatusOK, regs)
}

// MyRegistrations handles GET /me/registrations
func (h *EventHandler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	regs, err := h.svc.UserRegistrations(r.Context(), u.ID)
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	if regs == nil {
		regs = []model.Attendee{}
	}
	writeData(w, http.StatusOK, regs)
}

// Stats handles GET /stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Stats(r.Context())
	if err != nil {
		writeDomainError(w, h.logger(r), err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
