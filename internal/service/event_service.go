// Package service sits between the HTTP handlers and the seat repository.
// It forwards every call unchanged and, after a committed transition,
// announces it on the message broker.
package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/event-seat-inventory/internal/model"
	q "github.com/iliyamo/event-seat-inventory/internal/queue"
)

// SeatRepository is the subset of *repository.EventRepo the service uses.
type SeatRepository interface {
	CreateEvent(ctx context.Context, totalSeats int) (model.EventCreated, error)
	ListAvailableSeats(ctx context.Context, eventID string) ([]string, error)
	HoldSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error)
	ReserveSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error)
	RefreshHold(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error)
	SeatView(ctx context.Context, eventID, seatID string) (model.SeatView, error)
}

// EventPublisher announces committed seat transitions.
type EventPublisher interface {
	Publish(ctx context.Context, ev q.SeatEvent) error
}

const publishTimeout = 5 * time.Second

// EventService exposes the seat operations to handlers.  Repository errors
// are returned unchanged.
type EventService struct {
	repo      SeatRepository
	publisher EventPublisher
}

// NewEventService wires the service.  publisher may be nil, in which case
// no events are published.
func NewEventService(repo SeatRepository, publisher EventPublisher) *EventService {
	if repo == nil {
		panic("nil repository passed to NewEventService")
	}
	return &EventService{repo: repo, publisher: publisher}
}

func (s *EventService) CreateEvent(ctx context.Context, totalSeats int) (model.EventCreated, error) {
	return s.repo.CreateEvent(ctx, totalSeats)
}

func (s *EventService) ListAvailableSeats(ctx context.Context, eventID string) ([]string, error) {
	return s.repo.ListAvailableSeats(ctx, eventID)
}

func (s *EventService) SeatView(ctx context.Context, eventID, seatID string) (model.SeatView, error) {
	return s.repo.SeatView(ctx, eventID, seatID)
}

func (s *EventService) HoldSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error) {
	res, err := s.repo.HoldSeat(ctx, eventID, seatID, userID)
	if err == nil {
		s.publish(ctx, q.NewSeatEvent(q.SeatHeld, eventID, seatID, userID))
	}
	return res, err
}

func (s *EventService) ReserveSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error) {
	res, err := s.repo.ReserveSeat(ctx, eventID, seatID, userID)
	if err == nil {
		s.publish(ctx, q.NewSeatEvent(q.SeatReserved, eventID, seatID, userID))
	}
	return res, err
}

func (s *EventService) RefreshHold(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error) {
	res, err := s.repo.RefreshHold(ctx, eventID, seatID, userID)
	if err == nil {
		s.publish(ctx, q.NewSeatEvent(q.SeatHoldRefreshed, eventID, seatID, userID))
	}
	return res, err
}

// publish is best effort: the transition is already committed, so a broker
// failure is logged and the request still succeeds.
func (s *EventService) publish(ctx context.Context, ev q.SeatEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Printf("service: publish %s for %s/%s failed: %v", ev.Type, ev.EventID, ev.SeatID, err)
	}
}
