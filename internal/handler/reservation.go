package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/booking"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// ReservationHandler exposes the buyer-facing reservation endpoints.
// Creation is delegated to the booking service; detail lookups join the
// ticket with its event snapshot straight from the repository.
type ReservationHandler struct {
	Booking *booking.Service
	Tickets *repository.TicketRepo
}

// NewReservationHandler constructs a ReservationHandler and panics if
// any dependency is nil.
func NewReservationHandler(svc *booking.Service, tickets *repository.TicketRepo) *ReservationHandler {
	if svc == nil || tickets == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Booking: svc, Tickets: tickets}
}

// Create handles POST /reservations. On success the push has been
// accepted by the provider and the ticket is PENDING; the payment
// outcome arrives later through the callback or the status query.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body struct {
		EventID     uint64 `json:"eventId"`
		BuyerName   string `json:"buyerName"`
		PhoneNumber string `json:"phoneNumber"`
		Quantity    uint32 `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	res, err := h.Booking.CreateReservation(c.Request().Context(), booking.CreateReservationInput{
		EventID:      body.EventID,
		CustomerName: body.BuyerName,
		PhoneNumber:  body.PhoneNumber,
		Quantity:     body.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":           "payment initiated successfully",
		"reservationId":     res.Ticket.ID,
		"reference":         res.Ticket.Reference,
		"checkoutRequestId": res.CheckoutRequestID,
		"customerMessage":   res.CustomerMessage,
	})
}

// Get handles GET /reservations/:id and returns the ticket joined with
// its event snapshot.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	detail, err := h.Tickets.GetDetail(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}
