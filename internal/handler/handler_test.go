package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/booking"
	"github.com/iliyamo/movie-ticket-booking/internal/daraja"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// In-memory stores backing the booking service in handler tests. They
// reproduce the conditional-update behavior of the real repositories.

type memEvents struct{ events map[uint64]*model.Event }

func (m *memEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return ev, nil
}

type memTickets struct {
	events  *memEvents
	tickets map[uint64]*model.Ticket
	nextID  uint64
}

func (m *memTickets) Create(_ context.Context, t *model.Ticket) error {
	t.ID = m.nextID
	m.nextID++
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id uint64) (*model.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTickets) SoldQuantity(_ context.Context, eventID uint64) (uint32, error) {
	var sold uint32
	for _, t := range m.tickets {
		if t.EventID == eventID && t.Status == model.TicketPaid {
			sold += t.Quantity
		}
	}
	return sold, nil
}

func (m *memTickets) MarkFailed(_ context.Context, id uint64) error {
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	if t.Status != model.TicketPending {
		return repository.ErrTicketFinalized
	}
	t.Status = model.TicketFailed
	return nil
}

func (m *memTickets) SettlePaid(ctx context.Context, id uint64, receipt string, settledAt time.Time) error {
	t, ok := m.tickets[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	if t.Status != model.TicketPending {
		return repository.ErrTicketFinalized
	}
	ev, err := m.events.GetByID(ctx, t.EventID)
	if err != nil {
		return err
	}
	sold, _ := m.SoldQuantity(ctx, t.EventID)
	if sold+t.Quantity > ev.Capacity {
		return repository.ErrCapacityExceeded
	}
	t.Status = model.TicketPaid
	t.SettledAt = &settledAt
	if receipt != "" {
		t.ReceiptNumber = &receipt
	}
	return nil
}

type memPushes struct{ byToken map[string]*model.PushRequest }

func (m *memPushes) Create(_ context.Context, pr *model.PushRequest) error {
	m.byToken[pr.CheckoutRequestID] = pr
	return nil
}

func (m *memPushes) GetByCheckoutRequestID(_ context.Context, token string) (*model.PushRequest, error) {
	pr, ok := m.byToken[token]
	if !ok {
		return nil, repository.ErrPushRequestNotFound
	}
	return pr, nil
}

type memPayments struct {
	response *daraja.PushResponse
	err      error
}

func (m *memPayments) InitiateSTKPush(_ context.Context, _ daraja.PushRequest) (*daraja.PushResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

type memQuerier struct {
	response *daraja.QueryResponse
	err      error
}

func (m *memQuerier) QueryStatus(_ context.Context, _ string) (*daraja.QueryResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

type env struct {
	echo     *echo.Echo
	tickets  *memTickets
	pushes   *memPushes
	payments *memPayments
	querier  *memQuerier
	svc      *booking.Service
}

func newEnv() *env {
	events := &memEvents{events: map[uint64]*model.Event{
		1: {ID: 1, Title: "Inception", PriceCents: 50000, Capacity: 100},
	}}
	tickets := &memTickets{events: events, tickets: map[uint64]*model.Ticket{}, nextID: 1}
	pushes := &memPushes{byToken: map[string]*model.PushRequest{}}
	payments := &memPayments{response: &daraja.PushResponse{
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}}
	querier := &memQuerier{response: &daraja.QueryResponse{ResponseCode: "0"}}
	svc := booking.NewService(events, tickets, pushes, payments, nil)
	return &env{echo: echo.New(), tickets: tickets, pushes: pushes, payments: payments, querier: querier, svc: svc}
}

func (e *env) do(handler echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.echo.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.echo.HTTPErrorHandler(err, c)
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestReservationCreate(t *testing.T) {
	t.Run("accepted push returns 201", func(t *testing.T) {
		e := newEnv()
		h := NewReservationHandler(e.svc, repository.NewTicketRepo(nil))

		rec := e.do(h.Create, http.MethodPost, "/reservations",
			`{"eventId":1,"buyerName":"Jane","phoneNumber":"0712345678","quantity":2}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["checkoutRequestId"] != "ws_CO_1" {
			t.Errorf("checkoutRequestId = %v", body["checkoutRequestId"])
		}
		if body["reference"] == "" || body["reference"] == nil {
			t.Error("reference missing from response")
		}
	})

	t.Run("validation error returns 400", func(t *testing.T) {
		e := newEnv()
		h := NewReservationHandler(e.svc, repository.NewTicketRepo(nil))

		rec := e.do(h.Create, http.MethodPost, "/reservations",
			`{"eventId":1,"phoneNumber":"0712345678","quantity":2}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown event returns 404", func(t *testing.T) {
		e := newEnv()
		h := NewReservationHandler(e.svc, repository.NewTicketRepo(nil))

		rec := e.do(h.Create, http.MethodPost, "/reservations",
			`{"eventId":42,"buyerName":"Jane","phoneNumber":"0712345678","quantity":1}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("sold out returns 409 with availability", func(t *testing.T) {
		e := newEnv()
		e.tickets.tickets[9] = &model.Ticket{ID: 9, EventID: 1, Quantity: 99, Status: model.TicketPaid}
		h := NewReservationHandler(e.svc, repository.NewTicketRepo(nil))

		rec := e.do(h.Create, http.MethodPost, "/reservations",
			`{"eventId":1,"buyerName":"Jane","phoneNumber":"0712345678","quantity":2}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["available"] != float64(1) {
			t.Errorf("available = %v, want 1", body["available"])
		}
	})

	t.Run("provider rejection returns 502", func(t *testing.T) {
		e := newEnv()
		e.payments.err = &daraja.ProviderError{Code: "1", Description: "insufficient balance"}
		h := NewReservationHandler(e.svc, repository.NewTicketRepo(nil))

		rec := e.do(h.Create, http.MethodPost, "/reservations",
			`{"eventId":1,"buyerName":"Jane","phoneNumber":"0712345678","quantity":1}`)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})
}

func TestPaymentCallback(t *testing.T) {
	reserve := func(t *testing.T, e *env) uint64 {
		t.Helper()
		res, err := e.svc.CreateReservation(context.Background(), booking.CreateReservationInput{
			EventID: 1, CustomerName: "Jane", PhoneNumber: "0712345678", Quantity: 2,
		})
		if err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		return res.Ticket.ID
	}

	t.Run("success callback settles the ticket", func(t *testing.T) {
		e := newEnv()
		id := reserve(t, e)
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.Callback, http.MethodPost, "/payment-callback", `{
			"Body": {"stkCallback": {
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {"Item": [
					{"Name": "Amount", "Value": 1000},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20260514103000}
				]}
			}}
		}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		stored, _ := e.tickets.GetByID(context.Background(), id)
		if stored.Status != model.TicketPaid {
			t.Errorf("ticket status = %q, want PAID", stored.Status)
		}
		if stored.ReceiptNumber == nil || *stored.ReceiptNumber != "NLJ7RT61SV" {
			t.Errorf("receipt = %v, want NLJ7RT61SV", stored.ReceiptNumber)
		}
	})

	t.Run("failure callback marks the ticket failed", func(t *testing.T) {
		e := newEnv()
		id := reserve(t, e)
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.Callback, http.MethodPost, "/payment-callback", `{
			"Body": {"stkCallback": {
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}}
		}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		stored, _ := e.tickets.GetByID(context.Background(), id)
		if stored.Status != model.TicketFailed {
			t.Errorf("ticket status = %q, want FAILED", stored.Status)
		}
	})

	t.Run("malformed envelope returns 400", func(t *testing.T) {
		e := newEnv()
		h := NewPaymentHandler(e.svc, e.querier)

		for _, body := range []string{`{}`, `{"Body":{}}`, `{"Body":{"stkCallback":{"ResultCode":0}}}`} {
			rec := e.do(h.Callback, http.MethodPost, "/payment-callback", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("body %s: status = %d, want 400", body, rec.Code)
			}
		}
	})

	t.Run("unknown checkout request returns 404", func(t *testing.T) {
		e := newEnv()
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.Callback, http.MethodPost, "/payment-callback", `{
			"Body": {"stkCallback": {"CheckoutRequestID": "ws_CO_unknown", "ResultCode": 0}}
		}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("duplicate delivery stays acknowledged", func(t *testing.T) {
		e := newEnv()
		id := reserve(t, e)
		h := NewPaymentHandler(e.svc, e.querier)

		payload := `{"Body": {"stkCallback": {"CheckoutRequestID": "ws_CO_1", "ResultCode": 0}}}`
		for i := 0; i < 2; i++ {
			rec := e.do(h.Callback, http.MethodPost, "/payment-callback", payload)
			if rec.Code != http.StatusOK {
				t.Fatalf("delivery %d: status = %d", i+1, rec.Code)
			}
		}
		stored, _ := e.tickets.GetByID(context.Background(), id)
		if stored.Status != model.TicketPaid {
			t.Errorf("ticket status = %q, want PAID", stored.Status)
		}
	})
}

func TestPaymentQueryStatus(t *testing.T) {
	reserve := func(t *testing.T, e *env) uint64 {
		t.Helper()
		res, err := e.svc.CreateReservation(context.Background(), booking.CreateReservationInput{
			EventID: 1, CustomerName: "Jane", PhoneNumber: "0712345678", Quantity: 1,
		})
		if err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		return res.Ticket.ID
	}

	t.Run("conclusive success settles the ticket", func(t *testing.T) {
		e := newEnv()
		id := reserve(t, e)
		e.querier.response = &daraja.QueryResponse{
			ResponseCode: "0",
			ResultCode:   "0",
			ResultDesc:   "The service request is processed successfully.",
		}
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.QueryStatus, http.MethodPost, "/payment-status-query",
			`{"checkoutRequestId":"ws_CO_1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		stored, _ := e.tickets.GetByID(context.Background(), id)
		if stored.Status != model.TicketPaid {
			t.Errorf("ticket status = %q, want PAID", stored.Status)
		}
	})

	t.Run("conclusive failure marks the ticket failed", func(t *testing.T) {
		e := newEnv()
		id := reserve(t, e)
		e.querier.response = &daraja.QueryResponse{
			ResponseCode: "0",
			ResultCode:   "1037",
			ResultDesc:   "DS timeout",
		}
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.QueryStatus, http.MethodPost, "/payment-status-query",
			`{"checkoutRequestId":"ws_CO_1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		stored, _ := e.tickets.GetByID(context.Background(), id)
		if stored.Status != model.TicketFailed {
			t.Errorf("ticket status = %q, want FAILED", stored.Status)
		}
	})

	t.Run("pending result leaves the ticket untouched", func(t *testing.T) {
		e := newEnv()
		id := reserve(t, e)
		e.querier.response = &daraja.QueryResponse{ResponseCode: "0"}
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.QueryStatus, http.MethodPost, "/payment-status-query",
			`{"checkoutRequestId":"ws_CO_1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		stored, _ := e.tickets.GetByID(context.Background(), id)
		if stored.Status != model.TicketPending {
			t.Errorf("ticket status = %q, want PENDING", stored.Status)
		}
	})

	t.Run("missing checkout request id returns 400", func(t *testing.T) {
		e := newEnv()
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.QueryStatus, http.MethodPost, "/payment-status-query", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("provider unreachable returns 502", func(t *testing.T) {
		e := newEnv()
		reserve(t, e)
		e.querier.err = daraja.ErrUnavailable
		h := NewPaymentHandler(e.svc, e.querier)

		rec := e.do(h.QueryStatus, http.MethodPost, "/payment-status-query",
			`{"checkoutRequestId":"ws_CO_1"}`)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})
}
