package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
)

// RegisterRoutes registers routes that have no dependencies on the
// provided Echo instance. Currently it exposes only a health check used
// by load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterEvents registers the catalog endpoints. The cacheware
// middleware, when non-nil, is applied to the read endpoints only;
// event creation always hits the database.
func RegisterEvents(e *echo.Echo, h *handler.EventHandler, cacheware echo.MiddlewareFunc) {
	reads := []echo.MiddlewareFunc{}
	if cacheware != nil {
		reads = append(reads, cacheware)
	}
	e.GET("/events", h.List, reads...)
	e.GET("/events/:id", h.Get, reads...)
	e.POST("/events", h.Create)
}

// RegisterReservations registers the buyer-facing purchase endpoints.
// The limiter, when non-nil, throttles reservation creation so a
// misbehaving client cannot flood the payment provider with pushes;
// reservation reads are left unthrottled.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, limiter echo.MiddlewareFunc) {
	if limiter != nil {
		e.POST("/reservations", h.Create, limiter)
	} else {
		e.POST("/reservations", h.Create)
	}
	e.GET("/reservations/:id", h.Get)
}

// RegisterPayments registers the provider-facing endpoints: the
// asynchronous result callback and the explicit status query. Neither
// is rate limited; the callback URL is shared with the provider and
// must always be reachable.
func RegisterPayments(e *echo.Echo, h *handler.PaymentHandler) {
	e.POST("/payment-callback", h.Callback)
	e.POST("/payment-status-query", h.QueryStatus)
}
