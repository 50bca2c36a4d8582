package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/catalog"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/inventory"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/ledger"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
	"github.com/Shivanand-hulikatti/ticket-inventory/internal/service"
)

const testSecret = "test-secret-key-for-jwt-middleware"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	auth    *Authenticator
}

func setupServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	cat, err := catalog.NewSeeded()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc := service.NewEventService(inventory.New(cat, ledger.New(), nil), service.Options{
		Metrics:           metrics.New(reg),
		ServiceFeePercent: 5,
	})
	auth := NewAuthenticator(testSecret, "ticket-inventory")
	return &testServer{
		t:    t,
		auth: auth,
		handler: NewRouter(NewEventHandler(svc, nil), RouterConfig{
			Auth:     auth,
			Limiter:  limiter,
			Gatherer: reg,
		}),
	}
}

func (s *testServer) token(id, role string) string {
	s.t.Helper()
	tok, err := s.auth.Issue(model.User{ID: id, Name: "User " + id, Email: id + "@example.com", Role: role}, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthCheck(t *testing.T) {
	s := setupServer(t, nil)
	w, _ := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListAndGetEvents(t *testing.T) {
	s := setupServer(t, nil)

	w, env := s.do(http.MethodGet, "/events?province=Bagmati", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &events))
	assert.Len(t, events, 2)

	w, env = s.do(http.MethodGet, "/events/1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var event map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "Kathmandu Jazz Festival", event["title"])
	assert.Len(t, event["tickets"], 3)

	w, env = s.do(http.MethodGet, "/events/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}

func TestRegisterFlow(t *testing.T) {
	s := setupServer(t, nil)
	attendee := s.token("u1", RoleAttendee)

	w, env := s.do(http.MethodPost, "/events/2/register", attendee, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec model.Attendee
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "u1@example.com", rec.UserEmail)

	w, env = s.do(http.MethodPost, "/events/2/register", attendee, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeAlreadyRegistered, env.Error.Code)

	w, env = s.do(http.MethodGet, "/events/2/registration", attendee, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"registered":true}`, string(env.Data))

	w, _ = s.do(http.MethodDelete, "/events/2/registration", attendee, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodDelete, "/events/2/registration", attendee, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, env.Error.Code)

	w, _ = s.do(http.MethodPost, "/events/2/register", attendee, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestPurchaseFlow(t *testing.T) {
	s := setupServer(t, nil)
	attendee := s.token("u1", RoleAttendee)

	w, env := s.do(http.MethodGet, "/events/1/quote?ticketType=VIP&quantity=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var quote map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.Equal(t, "10500", quote["total"])

	w, env = s.do(http.MethodPost, "/events/1/purchase", attendee, `{"ticketType":"VIP","quantity":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rec model.Attendee
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, 2, rec.Quantity)
	assert.Equal(t, "5000", rec.PricePaid.String())

	w, env = s.do(http.MethodPost, "/events/1/purchase", attendee, `{"ticketType":"VVIP","quantity":21,"unitPrice":12000}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeInsufficientCapacity, env.Error.Code)
	assert.Contains(t, env.Error.Message, "only 20 available")

	w, env = s.do(http.MethodPost, "/events/1/purchase", attendee, `{"ticketType":"VIP","quantity":0,"unitPrice":5000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidQuantity, env.Error.Code)

	w, env = s.do(http.MethodPost, "/events/4/purchase", attendee, `{"quantity":1,"unitPrice":0}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeEventClosed, env.Error.Code)

	w, env = s.do(http.MethodGet, "/me/registrations", attendee, "")
	require.Equal(t, http.StatusOK, w.Code)
	var mine []model.Attendee
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)
}

func TestAuthorization(t *testing.T) {
	s := setupServer(t, nil)
	organizer := s.token("org", RoleOrganizer)
	attendee := s.token("u1", RoleAttendee)

	w, env := s.do(http.MethodPost, "/events/2/register", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, env.Error.Code)

	w, env = s.do(http.MethodPost, "/events/2/register", organizer, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeForbidden, env.Error.Code)

	w, _ = s.do(http.MethodGet, "/stats", attendee, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodGet, "/events/1/attendees", organizer, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/me/registrations", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid access token", env.Error.Message)
}

func TestAuthenticate_RejectsForeignTokens(t *testing.T) {
	s := setupServer(t, nil)

	expired, err := s.auth.Issue(model.User{ID: "u1", Role: RoleAttendee}, -time.Minute)
	require.NoError(t, err)
	w, env := s.do(http.MethodGet, "/me/registrations", expired, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "access token has expired", env.Error.Message)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"role":    RoleAttendee,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	w, _ = s.do(http.MethodGet, "/me/registrations", other, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrganizerWorkflow(t *testing.T) {
	s := setupServer(t, nil)
	organizer := s.token("org", RoleOrganizer)
	attendee := s.token("u1", RoleAttendee)

	body := `{"title":"Janakpur Art Fair","category":"Art","province":"Madhesh","tickets":[
		{"type":"General","price":300,"capacity":100,"registeredCount":0,"benefits":["Entry"]},
		{"type":"Patron","price":2000,"capacity":10,"registeredCount":0,"benefits":[]}
	]}`
	w, env := s.do(http.MethodPost, "/events", organizer, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &created))
	id := created["id"].(string)
	assert.Equal(t, "User org", created["organizer"])
	assert.Equal(t, "upcoming", created["status"])

	w, _ = s.do(http.MethodPost, "/events/"+id+"/purchase", attendee, `{"ticketType":"Patron","quantity":1}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(http.MethodPut, "/events/"+id+"/tickets/Patron/price", organizer, `{"price":2500}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/events/"+id+"/attendees", organizer, "")
	require.Equal(t, http.StatusOK, w.Code)
	var attendees []model.Attendee
	require.NoError(t, json.Unmarshal(env.Data, &attendees))
	require.Len(t, attendees, 1)
	assert.Equal(t, "2000", attendees[0].PricePaid.String())

	w, env = s.do(http.MethodPut, "/events/5/price", organizer, `{"price":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidPrice, env.Error.Code)

	w, env = s.do(http.MethodPost, "/events", organizer, `{"title":"","capacity":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidationFailed, env.Error.Code)

	w, env = s.do(http.MethodGet, "/stats", organizer, "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, float64(6), summary["totalEvents"])
	assert.Equal(t, "2000", summary["totalRevenue"])
}

func TestRateLimit(t *testing.T) {
	s := setupServer(t, NewRateLimiter(1, 2))
	attendee := s.token("u1", RoleAttendee)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w, _ := s.do(http.MethodPost, "/events/1/purchase", attendee, `{"ticketType":"General","quantity":1}`)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	// Reads are not limited.
	w, _ := s.do(http.MethodGet, "/events", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t, nil)
	attendee := s.token("u1", RoleAttendee)
	w, _ := s.do(http.MethodPost, "/events/2/register", attendee, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `inventory_operations_total{operation="register",outcome="success"} 1`)
}

func TestClassify(t *testing.T) {
	status, code := classify(&model.CapacityError{Requested: 3, Available: 1})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeInsufficientCapacity, code)

	status, code = classify(model.ErrEventFull)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeEventFull, code)

	status, _ = classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
}
