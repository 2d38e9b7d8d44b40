// Package expiry turns Redis key expiration notifications into seat
// releases.  When a hold marker (hold:<eventId>:<seatId>) expires, Redis
// publishes its name on __keyevent@<db>__:expired; the Notifier receives it
// and asks the repository to return the seat to the pool if it is still
// held.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-seat-inventory/internal/queue"
	"github.com/iliyamo/event-seat-inventory/internal/repository"
)

// Subscriber opens pattern subscriptions.  *store.Store satisfies it.
type Subscriber interface {
	PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub
}

// Releaser returns an expired hold's seat to the pool.  *repository.EventRepo
// satisfies it.
type Releaser interface {
	ReleaseIfHeld(ctx context.Context, eventID, seatID string) (bool, error)
}

// Rearmer recreates the hold marker of a seat whose release could not be
// committed, so its expiry is announced again.  *repository.EventRepo
// satisfies it; releasers without it get no second chance.
type Rearmer interface {
	RearmHold(ctx context.Context, eventID, seatID string, ttl time.Duration) (bool, error)
}

// EventPublisher receives a seat.released event after a successful release.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.SeatEvent) error
}

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	retryMinBackoff = 20 * time.Millisecond
	retryMaxBackoff = time.Second

	rearmTTL       = time.Second
	rearmTimeout   = 2 * time.Second
	publishTimeout = 5 * time.Second
)

var errSubscriptionClosed = errors.New("subscription channel closed")

// ExpiredChannel returns the keyevent channel Redis uses for expired keys in
// database db.
func ExpiredChannel(db int) string {
	return fmt.Sprintf("__keyevent@%d__:expired", db)
}

// Notifier consumes expiration notifications until its context is done.
type Notifier struct {
	sub         Subscriber
	releaser    Releaser
	publisher   EventPublisher
	channel     string
	maxAttempts int
	minBackoff  time.Duration
	retryMin    time.Duration
	retryMax    time.Duration

	readyOnce sync.Once
	ready     chan struct{}
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithPublisher publishes a seat.released event for every release.
func WithPublisher(p EventPublisher) Option {
	return func(n *Notifier) { n.publisher = p }
}

// WithDB listens on the expiry channel of Redis database db (default 0).
func WithDB(db int) Option {
	return func(n *Notifier) { n.channel = ExpiredChannel(db) }
}

// WithMaxAttempts bounds how often a release that lost an optimistic-lock
// race is attempted.  By default it is retried until the context is done.
func WithMaxAttempts(attempts int) Option {
	return func(n *Notifier) {
		if attempts > 0 {
			n.maxAttempts = attempts
		}
	}
}

// NewNotifier returns a Notifier that subscribes through sub and hands
// expired holds to releaser.
func NewNotifier(sub Subscriber, releaser Releaser, opts ...Option) *Notifier {
	n := &Notifier{
		sub:        sub,
		releaser:   releaser,
		channel:    ExpiredChannel(0),
		minBackoff: minBackoff,
		retryMin:   retryMinBackoff,
		retryMax:   retryMaxBackoff,
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Channel is the keyevent channel the notifier subscribes to.
func (n *Notifier) Channel() string { return n.channel }

// Ready is closed once the first subscription has been confirmed by Redis.
func (n *Notifier) Ready() <-chan struct{} { return n.ready }

// Run subscribes and dispatches notifications until ctx is cancelled.  If
// the subscription drops, it re-subscribes with exponential backoff.  Run
// only returns when ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	backoff := n.minBackoff
	for {
		subscribed, err := n.listen(ctx)
		if ctx.Err() != nil {
			log.Printf("expiry: notifier stopped")
			return
		}
		if subscribed {
			backoff = n.minBackoff
		}
		log.Printf("expiry: subscription ended: %v; resubscribing in %s", err, backoff)
		select {
		case <-ctx.Done():
			log.Printf("expiry: notifier stopped")
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func (n *Notifier) listen(ctx context.Context) (bool, error) {
	ps := n.sub.PSubscribe(ctx, n.channel)
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		return false, fmt.Errorf("psubscribe %s: %w", n.channel, err)
	}
	log.Printf("expiry: subscribed to %s", n.channel)
	n.readyOnce.Do(func() { close(n.ready) })

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return true, errSubscriptionClosed
			}
			n.Handle(ctx, msg.Channel, msg.Payload)
		}
	}
}

// Handle processes one notification.  Anything that is not a hold marker
// expiring on the expected channel is logged and ignored.  Failures are
// logged and never propagate.  When the release cannot be committed the
// hold marker is re-armed with a short ttl, so the seat gets another
// notification instead of staying held.
func (n *Notifier) Handle(ctx context.Context, channel, payload string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("expiry: panic while handling %q: %v", payload, r)
		}
	}()

	log.Printf("expiry: key expiration event received: channel=%s message=%s", channel, payload)
	if channel != n.channel {
		log.Printf("expiry: ignoring notification on unexpected channel %s", channel)
		return
	}
	eventID, seatID, ok := repository.ParseHoldKey(payload)
	if !ok {
		log.Printf("expiry: ignoring non-hold key %q", payload)
		return
	}

	released, attempts, err := n.release(ctx, eventID, seatID)
	if err != nil {
		log.Printf("expiry: error updating seat status event=%s seat=%s after %d attempt(s): %v", eventID, seatID, attempts, err)
		n.rearm(ctx, eventID, seatID)
		return
	}
	if !released {
		return
	}
	log.Printf("expiry: seat %s returned to available for event %s", seatID, eventID)
	if n.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.publisher.Publish(pctx, queue.NewSeatEvent(queue.SeatReleased, eventID, seatID, "")); err != nil {
		log.Printf("expiry: publish release event failed: %v", err)
	}
}

// release calls ReleaseIfHeld until it is not aborted by a concurrent write
// to the event.  Aborted attempts back off with jitter; the loop ends when
// ctx is done or the attempt limit is reached.
func (n *Notifier) release(ctx context.Context, eventID, seatID string) (bool, int, error) {
	backoff := n.retryMin
	for attempt := 1; ; attempt++ {
		released, err := n.releaser.ReleaseIfHeld(ctx, eventID, seatID)
		if !errors.Is(err, repository.ErrTransactionFailed) {
			return released, attempt, err
		}
		if n.maxAttempts > 0 && attempt >= n.maxAttempts {
			return false, attempt, err
		}
		select {
		case <-ctx.Done():
			return false, attempt, err
		case <-time.After(backoff/2 + rand.N(backoff/2+1)):
		}
		backoff = min(2*backoff, n.retryMax)
	}
}

// rearm gives a release that could not be committed another notification.
// The hold marker is gone by the time its expiry is delivered, so without
// it the seat would stay held.
func (n *Notifier) rearm(ctx context.Context, eventID, seatID string) {
	r, ok := n.releaser.(Rearmer)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rearmTimeout)
	defer cancel()
	armed, err := r.RearmHold(ctx, eventID, seatID, rearmTTL)
	if err != nil {
		log.Printf("expiry: re-arming hold event=%s seat=%s failed: %v", eventID, seatID, err)
		return
	}
	if armed {
		log.Printf("expiry: re-armed hold event=%s seat=%s for %s", eventID, seatID, rearmTTL)
	}
}
