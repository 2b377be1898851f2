package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/booking"
	"github.com/iliyamo/movie-ticket-booking/internal/daraja"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// StatusQuerier asks the provider for the outcome of an accepted push.
// Implemented by *daraja.Client.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, checkoutRequestID string) (*daraja.QueryResponse, error)
}

// PaymentHandler receives the provider's asynchronous callback and
// serves the explicit status-query fallback. Both paths feed the same
// Finalize operation on the booking service, which tolerates duplicate
// and racing deliveries.
type PaymentHandler struct {
	Booking *booking.Service
	Querier StatusQuerier
}

// NewPaymentHandler constructs a PaymentHandler and panics if any
// dependency is nil.
func NewPaymentHandler(svc *booking.Service, querier StatusQuerier) *PaymentHandler {
	if svc == nil || querier == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Booking: svc, Querier: querier}
}

// callbackEnvelope mirrors the provider's callback wrapper. The
// stkCallback element is the tagged payload; its absence marks the
// request as malformed rather than a failed payment.
type callbackEnvelope struct {
	Body struct {
		StkCallback *booking.StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

// Callback handles POST /payment-callback. A malformed envelope is the
// only case rejected with a 400; once the payload is well formed the
// provider always receives a 200 acknowledgment and any internal
// Finalize error is logged instead of surfaced, so the provider does
// not keep redelivering a result we cannot process.
func (h *PaymentHandler) Callback(c echo.Context) error {
	var env callbackEnvelope
	if err := c.Bind(&env); err != nil || env.Body.StkCallback == nil || env.Body.StkCallback.CheckoutRequestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid callback data"})
	}
	cb := env.Body.StkCallback

	out := booking.OutcomeFromCallback(cb, time.Now())
	if err := h.Booking.Finalize(c.Request().Context(), cb.CheckoutRequestID, out); err != nil {
		if errors.Is(err, repository.ErrPushRequestNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no matching push request found"})
		}
		log.Printf("payment-callback: finalize %s: %v", cb.CheckoutRequestID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "callback received"})
}

// QueryStatus handles POST /payment-status-query. It proxies the
// provider's synchronous status payload back to the caller and, when
// the result is conclusive, feeds it through Finalize first so polling
// works as a reconciliation path when the callback channel is delayed.
func (h *PaymentHandler) QueryStatus(c echo.Context) error {
	var body struct {
		CheckoutRequestID string `json:"checkoutRequestId"`
	}
	if err := c.Bind(&body); err != nil || body.CheckoutRequestID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "checkout request id not provided"})
	}

	res, err := h.Querier.QueryStatus(c.Request().Context(), body.CheckoutRequestID)
	if err != nil {
		return writeError(c, err)
	}

	switch res.ResultCode {
	case "":
		// Push still in flight, nothing to reconcile yet.
	case "0":
		// The query payload carries no receipt items; the settlement
		// time defaults to now and the receipt stays empty.
		if err := h.Booking.Finalize(c.Request().Context(), body.CheckoutRequestID, booking.Outcome{Success: true}); err != nil {
			log.Printf("payment-status-query: finalize %s: %v", body.CheckoutRequestID, err)
		}
	default:
		out := booking.Outcome{Success: false, FailureCode: res.ResultCode, FailureDesc: res.ResultDesc}
		if err := h.Booking.Finalize(c.Request().Context(), body.CheckoutRequestID, out); err != nil {
			log.Printf("payment-status-query: finalize %s: %v", body.CheckoutRequestID, err)
		}
	}
	return c.JSON(http.StatusOK, res)
}
