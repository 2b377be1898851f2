package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/booking"
	"github.com/iliyamo/movie-ticket-booking/internal/daraja"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// writeError maps domain errors onto HTTP responses. Provider-side
// failures become 502s: the reservation was already marked FAILED by
// the booking service, so the buyer can simply retry with a new
// request. Anything unrecognized is logged and reported as an opaque
// 500; request-handling errors never crash the process.
func writeError(c echo.Context, err error) error {
	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Reason})
	}
	var soldOut *booking.SoldOutError
	if errors.As(err, &soldOut) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     soldOut.Error(),
			"available": soldOut.Available,
		})
	}
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, repository.ErrTicketNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
	case errors.Is(err, repository.ErrPushRequestNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no matching push request found"})
	case errors.Is(err, daraja.ErrAuthFailure):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to authenticate with payment provider"})
	case errors.Is(err, daraja.ErrUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unreachable"})
	}
	var pe *daraja.ProviderError
	if errors.As(err, &pe) {
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":       "payment provider rejected the request",
			"code":        pe.Code,
			"description": pe.Description,
		})
	}
	log.Printf("handler: internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
