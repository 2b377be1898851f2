package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// EventHandler exposes the catalog: listing events, fetching one and
// creating new ones. Catalog writes are administrative; the payment
// core only ever reads events.
type EventHandler struct {
	Events *repository.EventRepo
}

// NewEventHandler constructs an EventHandler and panics if the
// repository is nil.
func NewEventHandler(events *repository.EventRepo) *EventHandler {
	if events == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events}
}

// List handles GET /events and returns all events ordered by show time.
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.Events.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

// Get handles GET /events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event": ev})
}

// showTimeLayouts are the accepted formats for the showTime field.
var showTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05"}

// Create handles POST /events. Title, showTime and priceCents are
// required; capacity defaults to 100 seats.
func (h *EventHandler) Create(c echo.Context) error {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ShowTime    string `json:"showTime"`
		PriceCents  uint32 `json:"priceCents"`
		Capacity    uint32 `json:"capacity"`
		ImageURL    string `json:"imageUrl"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Title) == "" || body.ShowTime == "" || body.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing required fields: title, showTime, priceCents"})
	}
	var showTime time.Time
	var parseErr error
	for _, layout := range showTimeLayouts {
		if showTime, parseErr = time.Parse(layout, body.ShowTime); parseErr == nil {
			break
		}
	}
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showTime, expected RFC3339 or YYYY-MM-DD HH:MM:SS"})
	}

	ev := &model.Event{
		Title:      strings.TrimSpace(body.Title),
		ShowTime:   showTime.UTC(),
		PriceCents: body.PriceCents,
		Capacity:   body.Capacity,
	}
	if ev.Capacity == 0 {
		ev.Capacity = 100
	}
	if body.Description != "" {
		ev.Description = &body.Description
	}
	if body.ImageURL != "" {
		ev.ImageURL = &body.ImageURL
	}
	if err := h.Events.Create(c.Request().Context(), ev); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "event added successfully",
		"event":   ev,
	})
}
