// Package index records registry events into a queryable store so the
// external service can look up which accounts exist and who claimed them
// without replaying the registry's history. The recorder consumes the
// registry's event stream; stores are pluggable (in-memory or PostgreSQL).
package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/claimable/account-registry-backend/interfaces"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// AccountRecord is one indexed account.
type AccountRecord struct {
	Salt           interfaces.Salt           `json:"salt"`
	Address        interfaces.AccountAddress `json:"address"`
	Implementation interfaces.AccountAddress `json:"implementation"`
	CreatedAt      time.Time                 `json:"created_at"`

	Claimed   bool                      `json:"claimed"`
	Owner     interfaces.AccountAddress `json:"owner,omitzero"`
	ClaimedAt time.Time                 `json:"claimed_at,omitzero"`
}

// Store persists indexed account records.
type Store interface {
	RecordCreated(ctx context.Context, ev interfaces.AccountCreatedEvent, at time.Time) error
	RecordClaimed(ctx context.Context, ev interfaces.AccountClaimedEvent, at time.Time) error
	AccountBySalt(ctx context.Context, salt interfaces.Salt) (AccountRecord, error)
	AccountByAddress(ctx context.Context, addr interfaces.AccountAddress) (AccountRecord, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]AccountRecord, error)
}

// recorderQueueSize bounds the number of events waiting for a store write.
// The registry emits events while holding its lock, so enqueueing must never
// wait on the store.
const recorderQueueSize = 1024

type recordJob struct {
	write   func(ctx context.Context) error
	event   string
	address string
}

// Recorder adapts a Store to the registry's EventSink. Events are queued and
// written by a single background worker in emit order, so enqueueing never
// blocks on the store. Store failures and queue overflow are logged and
// dropped: indexing must never abort a registry operation.
type Recorder struct {
	store   Store
	log     *slog.Logger
	now     func() time.Time
	timeout time.Duration

	jobs chan recordJob
	done chan struct{}
}

// NewRecorder creates an event recorder writing to store and starts its
// worker. Call Close to drain pending writes.
func NewRecorder(store Store, log *slog.Logger) *Recorder {
	r := &Recorder{
		store:   store,
		log:     log,
		now:     time.Now,
		timeout: 5 * time.Second,
		jobs:    make(chan recordJob, recorderQueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := job.write(ctx); err != nil {
			r.log.Error("Failed to index event", "err", err, "event", job.event, "address", job.address)
		}
		cancel()
	}
}

func (r *Recorder) enqueue(job recordJob) {
	select {
	case r.jobs <- job:
	default:
		r.log.Error("Event index queue full, dropping event", "event", job.event, "address", job.address)
	}
}

// Close drains pending writes and stops the worker. The recorder must not be
// used afterwards.
func (r *Recorder) Close() {
	close(r.jobs)
	<-r.done
}

// AccountCreated implements interfaces.EventSink.
func (r *Recorder) AccountCreated(ev interfaces.AccountCreatedEvent) {
	at := r.now()
	r.enqueue(recordJob{
		write: func(ctx context.Context) error {
			return r.store.RecordCreated(ctx, ev, at)
		},
		event:   "AccountCreated",
		address: ev.Address.String(),
	})
}

// AccountClaimed implements interfaces.EventSink.
func (r *Recorder) AccountClaimed(ev interfaces.AccountClaimedEvent) {
	at := r.now()
	r.enqueue(recordJob{
		write: func(ctx context.Context) error {
			return r.store.RecordClaimed(ctx, ev, at)
		},
		event:   "AccountClaimed",
		address: ev.Address.String(),
	})
}
