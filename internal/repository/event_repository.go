package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-seat-inventory/internal/model"
	"github.com/iliyamo/event-seat-inventory/internal/store"
	"github.com/iliyamo/event-seat-inventory/internal/utils"
)

const (
	// DefaultHoldTTL is how long a hold survives without a refresh.
	DefaultHoldTTL = 60 * time.Second

	defaultInitConcurrency = 32
)

// errNotHeld short-circuits ReleaseIfHeld; it never leaves the package.
var errNotHeld = errors.New("seat not held")

// EventRepo implements the seat lifecycle on top of the key-value store.
// It keeps no seat state in memory: every read goes to Redis, and every
// contended write runs inside WATCH/MULTI/EXEC on the event hash so that
// the first committed transaction wins and the others fail with
// ErrTransactionFailed.
//
// State machine per seat:
//
//	available --HoldSeat--> held --ReserveSeat--> reserved
//	held --ReleaseIfHeld (hold expired)--> available
type EventRepo struct {
	store           *store.Store
	holdTTL         time.Duration
	initConcurrency int

	// beforeCommit runs between the read and EXEC of every watched
	// transition.  Tests use it to force a concurrent modification.
	beforeCommit func(ctx context.Context)
}

// Option customizes an EventRepo.
type Option func(*EventRepo)

// WithHoldTTL overrides DefaultHoldTTL.  Non-positive values are ignored.
func WithHoldTTL(d time.Duration) Option {
	return func(r *EventRepo) {
		if d > 0 {
			r.holdTTL = d
		}
	}
}

// WithInitConcurrency bounds the number of seats initialized in parallel
// by CreateEvent.  Non-positive values are ignored.
func WithInitConcurrency(n int) Option {
	return func(r *EventRepo) {
		if n > 0 {
			r.initConcurrency = n
		}
	}
}

// NewEventRepo returns an EventRepo bound to st.
func NewEventRepo(st *store.Store, opts ...Option) *EventRepo {
	r := &EventRepo{
		store:           st,
		holdTTL:         DefaultHoldTTL,
		initConcurrency: defaultInitConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HoldTTL returns the time to live applied to hold markers.
func (r *EventRepo) HoldTTL() time.Duration { return r.holdTTL }

// CreateEvent allocates a new event id and marks seat1..seatN available.
// Seats are written concurrently with plain writes; nobody can address the
// event before its id is returned, so no watch is needed.
func (r *EventRepo) CreateEvent(ctx context.Context, totalSeats int) (model.EventCreated, error) {
	if !utils.IsTotalSeatsValid(totalSeats) {
		return model.EventCreated{}, ErrInvalidTotalSeats
	}
	eventID := uuid.NewString()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.initConcurrency)
	for i := 1; i <= totalSeats; i++ {
		seatID := seatLabel(i)
		g.Go(func() error {
			return r.setSeatStatus(gctx, eventID, seatID, model.SeatAvailable, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return model.EventCreated{}, err
	}
	return model.EventCreated{ID: eventID, TotalSeats: totalSeats}, nil
}

// ListAvailableSeats returns the members of the event's available-set in
// no particular order.  Unknown events yield an empty slice.
func (r *EventRepo) ListAvailableSeats(ctx context.Context, eventID string) ([]string, error) {
	seats, err := r.store.SMembers(ctx, availableSeatsKey(eventID))
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []string{}
	}
	return seats, nil
}

// HoldSeat moves an available seat to held for userID and starts the hold
// countdown.
func (r *EventRepo) HoldSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error) {
	if !utils.IsUserIDValid(userID) {
		return model.OperationResult{}, ErrInvalidUserID
	}
	record, err := encodeSeat(model.SeatHeld, &userID)
	if err != nil {
		return model.OperationResult{}, err
	}
	err = r.transition(ctx, eventID, seatID,
		func(seat model.SeatInfo) error {
			if !utils.IsSeatAvailable(seat.Status) {
				return ErrSeatNotAvailableOrHeld
			}
			return nil
		},
		func(p *store.Pipe) {
			p.HSet(ctx, eventKey(eventID), seatID, record)
			p.SRem(ctx, availableSeatsKey(eventID), seatID)
			p.SetEx(ctx, holdKey(eventID, seatID), r.holdTTL, string(model.SeatHeld))
		},
	)
	if err != nil {
		return model.OperationResult{}, err
	}
	return success(seatID, userID), nil
}

// ReserveSeat confirms a seat held by userID.  The hold marker is left to
// expire on its own; ReleaseIfHeld ignores reserved seats.
func (r *EventRepo) ReserveSeat(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error) {
	if !utils.IsUserIDValid(userID) {
		return model.OperationResult{}, ErrInvalidUserID
	}
	record, err := encodeSeat(model.SeatReserved, &userID)
	if err != nil {
		return model.OperationResult{}, err
	}
	err = r.transition(ctx, eventID, seatID,
		func(seat model.SeatInfo) error {
			if !utils.IsSeatHeldByUser(seat, userID) {
				return ErrCannotReserveSeat
			}
			return nil
		},
		func(p *store.Pipe) {
			p.HSet(ctx, eventKey(eventID), seatID, record)
		},
	)
	if err != nil {
		return model.OperationResult{}, err
	}
	return success(seatID, userID), nil
}

// RefreshHold restarts the hold countdown for a seat held by userID.  The
// seat record itself is not touched.
func (r *EventRepo) RefreshHold(ctx context.Context, eventID, seatID, userID string) (model.OperationResult, error) {
	if !utils.IsUserIDValid(userID) {
		return model.OperationResult{}, ErrInvalidUserID
	}
	err := r.transition(ctx, eventID, seatID,
		func(seat model.SeatInfo) error {
			if !utils.IsSeatHeldByUser(seat, userID) {
				return ErrCannotRefreshHold
			}
			return nil
		},
		func(p *store.Pipe) {
			p.SetEx(ctx, holdKey(eventID, seatID), r.holdTTL, string(model.SeatHeld))
		},
	)
	if err != nil {
		return model.OperationResult{}, err
	}
	return success(seatID, userID), nil
}

// GetSeatStatus returns the stored record, or the zero SeatInfo when the
// event has no record for seatID.
func (r *EventRepo) GetSeatStatus(ctx context.Context, eventID, seatID string) (model.SeatInfo, error) {
	raw, ok, err := r.store.HGet(ctx, eventKey(eventID), seatID)
	if err != nil || !ok {
		return model.SeatInfo{}, err
	}
	return decodeSeat(raw)
}

// SeatView returns the seat record together with the remaining lifetime of
// its hold marker.  HoldTTLSeconds is 0 unless the seat is held.
func (r *EventRepo) SeatView(ctx context.Context, eventID, seatID string) (model.SeatView, error) {
	raw, ok, err := r.store.HGet(ctx, eventKey(eventID), seatID)
	if err != nil {
		return model.SeatView{}, err
	}
	if !ok {
		return model.SeatView{}, ErrSeatNotFound
	}
	seat, err := decodeSeat(raw)
	if err != nil {
		return model.SeatView{}, err
	}
	view := model.SeatView{SeatID: seatID, Status: seat.Status, UserID: seat.UserID}
	// A reserved seat keeps its marker until it expires; only a live hold
	// has a countdown.
	if seat.Status != model.SeatHeld {
		return view, nil
	}

	hk := holdKey(eventID, seatID)
	if _, present, err := r.store.Get(ctx, hk); err != nil {
		return model.SeatView{}, err
	} else if !present {
		return view, nil
	}
	ttl, ok, err := r.store.TTL(ctx, hk)
	if err != nil {
		return model.SeatView{}, err
	}
	if ok {
		view.HoldTTLSeconds = int64((ttl + time.Second - 1) / time.Second)
	}
	return view, nil
}

// ReleaseIfHeld returns a held seat to the available pool.  It is driven by
// hold-marker expiry and is a no-op for available, reserved and unknown
// seats, so duplicate or late notifications are harmless.  The read and
// write run under a watch, so a reservation committed in between aborts the
// release instead of being downgraded.
//
// The check is by status only: an expiry that arrives after the seat was
// released and held again by someone else releases the new hold.
func (r *EventRepo) ReleaseIfHeld(ctx context.Context, eventID, seatID string) (bool, error) {
	record, err := encodeSeat(model.SeatAvailable, nil)
	if err != nil {
		return false, err
	}
	err = r.transition(ctx, eventID, seatID,
		func(seat model.SeatInfo) error {
			if !utils.IsSeatHeld(seat.Status) {
				return errNotHeld
			}
			return nil
		},
		func(p *store.Pipe) {
			p.HSet(ctx, eventKey(eventID), seatID, record)
			p.SAdd(ctx, availableSeatsKey(eventID), seatID)
		},
	)
	if errors.Is(err, errNotHeld) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RearmHold recreates the missing hold marker of a seat that is still held,
// with a short ttl, so Redis announces its expiry again.  It is used when a
// release could not be committed.  An existing marker is never replaced,
// and seats that are not held are left alone.
func (r *EventRepo) RearmHold(ctx context.Context, eventID, seatID string, ttl time.Duration) (bool, error) {
	seat, err := r.GetSeatStatus(ctx, eventID, seatID)
	if err != nil {
		return false, err
	}
	if !utils.IsSeatHeld(seat.Status) {
		return false, nil
	}
	return r.store.SetNX(ctx, holdKey(eventID, seatID), ttl, string(model.SeatHeld))
}

// transition runs the watch, read, check, commit sequence shared by every
// contended operation.  check rejects the current record; queue adds the
// writes executed atomically when the watched event hash is unchanged.
func (r *EventRepo) transition(ctx context.Context, eventID, seatID string, check func(model.SeatInfo) error, queue func(p *store.Pipe)) error {
	key := eventKey(eventID)
	err := r.store.Watch(ctx, key, func(tx *store.Tx) error {
		raw, ok, err := tx.HGet(ctx, key, seatID)
		if err != nil {
			return err
		}
		var seat model.SeatInfo
		if ok {
			if seat, err = decodeSeat(raw); err != nil {
				return err
			}
		}
		if err := check(seat); err != nil {
			if uerr := tx.Unwatch(ctx); uerr != nil {
				return uerr
			}
			return err
		}
		if r.beforeCommit != nil {
			r.beforeCommit(ctx)
		}
		return tx.Exec(ctx, func(p *store.Pipe) error {
			queue(p)
			return nil
		})
	})
	if errors.Is(err, store.ErrTxAborted) {
		return ErrTransactionFailed
	}
	return err
}

// setSeatStatus writes the record and the matching available-set
// membership without a watch.  Only used on uncontended paths.
func (r *EventRepo) setSeatStatus(ctx context.Context, eventID, seatID string, status model.SeatStatus, userID *string) error {
	record, err := encodeSeat(status, userID)
	if err != nil {
		return err
	}
	if _, err := r.store.HSet(ctx, eventKey(eventID), seatID, record); err != nil {
		return err
	}
	if status == model.SeatAvailable {
		_, err = r.store.SAdd(ctx, availableSeatsKey(eventID), seatID)
	} else {
		_, err = r.store.SRem(ctx, availableSeatsKey(eventID), seatID)
	}
	return err
}

// ParseHoldKey splits a hold marker key of the form hold:<eventId>:<seatId>.
func ParseHoldKey(key string) (eventID, seatID string, ok bool) {
	if !strings.HasPrefix(key, holdKeyPrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(key, holdKeyPrefix), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func encodeSeat(status model.SeatStatus, userID *string) (string, error) {
	b, err := json.Marshal(model.SeatInfo{Status: status, UserID: userID})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSeat(raw string) (model.SeatInfo, error) {
	var seat model.SeatInfo
	if err := json.Unmarshal([]byte(raw), &seat); err != nil {
		return model.SeatInfo{}, fmt.Errorf("decode seat record: %w", err)
	}
	return seat, nil
}

func success(seatID, userID string) model.OperationResult {
	return model.OperationResult{Status: "success", SeatID: seatID, UserID: userID}
}
