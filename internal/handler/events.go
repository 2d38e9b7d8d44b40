package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-inventory/internal/model"
	"github.com/iliyamo/event-seat-inventory/internal/repository"
	"github.com/iliyamo/event-seat-inventory/internal/utils"
)

// SeatService is implemented by *service.EventService.
type SeatService interface {
	CreateEvent(ctx context.Context, totalSeats int) (model.EventCreated, error)
	ListAvailableSeats(ctx context.Context, eventID string) ([]string, error)
	HoldSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error)
	ReserveSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error)
	RefreshHold(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error)
	SeatView(ctx context.Context, eventID, seatID string) (model.SeatView, error)
}

// EventHandler maps the event and seat endpoints onto the seat service.
// Validation failures and lost races are answered with 400 and the error
// message; anything else is a 500.
type EventHandler struct {
	Svc SeatService
}

// NewEventHandler constructs an EventHandler.  svc must be non-nil.
func NewEventHandler(svc SeatService) *EventHandler {
	if svc == nil {
		panic("nil service passed to NewEventHandler")
	}
	return &EventHandler{Svc: svc}
}

type createEventRequest struct {
	TotalSeats *int `json:"totalSeats"`
}

type seatRequest struct {
	UserID string `json:"userId"`
}

// CreateEvent handles POST /events.  Body: {"totalSeats": 10..1000}.
// Returns 201 with {id, totalSeats}.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	var body createEventRequest
	if err := c.Bind(&body); err != nil || body.TotalSeats == nil || !utils.IsTotalSeatsValid(*body.TotalSeats) {
		return errorJSON(c, http.StatusBadRequest, repository.ErrInvalidTotalSeats)
	}
	ev, err := h.Svc.CreateEvent(c.Request().Context(), *body.TotalSeats)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTotalSeats) {
			return errorJSON(c, http.StatusBadRequest, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// ListAvailableSeats handles GET /events/:eventId/available-seats and
// returns the seat labels as a JSON array.
func (h *EventHandler) ListAvailableSeats(c echo.Context) error {
	seats, err := h.Svc.ListAvailableSeats(c.Request().Context(), c.Param("eventId"))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, seats)
}

// GetSeat handles GET /events/:eventId/seats/:seatId.
func (h *EventHandler) GetSeat(c echo.Context) error {
	view, err := h.Svc.SeatView(c.Request().Context(), c.Param("eventId"), c.Param("seatId"))
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return errorJSON(c, http.StatusNotFound, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HoldSeat handles POST /events/:eventId/seats/:seatId/hold.
func (h *EventHandler) HoldSeat(c echo.Context) error {
	return h.seatOperation(c, h.Svc.HoldSeat)
}

// ReserveSeat handles POST /events/:eventId/seats/:seatId/reserve.
func (h *EventHandler) ReserveSeat(c echo.Context) error {
	return h.seatOperation(c, h.Svc.ReserveSeat)
}

// RefreshHold handles POST /events/:eventId/seats/:seatId/refresh.
func (h *EventHandler) RefreshHold(c echo.Context) error {
	return h.seatOperation(c, h.Svc.RefreshHold)
}

type seatOp func(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error)

func (h *EventHandler) seatOperation(c echo.Context, op seatOp) error {
	var body seatRequest
	if err := c.Bind(&body); err != nil || !utils.IsUserIDValid(body.UserID) {
		return errorJSON(c, http.StatusBadRequest, repository.ErrInvalidUserID)
	}
	res, err := op(c.Request().Context(), c.Param("eventId"), c.Param("seatId"), body.UserID)
	if err != nil {
		if isClientError(err) {
			return errorJSON(c, http.StatusBadRequest, err)
		}
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, res)
}

var clientErrors = []error{
	repository.ErrInvalidUserID,
	repository.ErrSeatNotAvailableOrHeld,
	repository.ErrCannotReserveSeat,
	repository.ErrCannotRefreshHold,
	repository.ErrTransactionFailed,
}

func isClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func errorJSON(c echo.Context, status int, err error) error {
	return c.JSON(status, echo.Map{"error": err.Error()})
}
