package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/advcontrato/account-service/internal/core/domain"
	"github.com/advcontrato/account-service/internal/core/ports"
	"github.com/advcontrato/account-service/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// ErrDispatcherStopped is returned by NotifyKeyIssued once Stop has been called.
var ErrDispatcherStopped = errors.New("key dispatcher stopped")

// KeyPublisher delivers a single issued key to its downstream channel.
type KeyPublisher interface {
	Publish(ctx context.Context, event domain.KeyIssued) error
}

var _ ports.KeyNotifier = (*Dispatcher)(nil)

// Dispatcher hands issued keys to a fixed set of workers using consistent
// hashing on the email, so keys issued to one address are published in order.
type Dispatcher struct {
	workers   []chan domain.KeyIssued
	publisher KeyPublisher
	log       zerolog.Logger

	// mu guards stopped and the close of the worker channels against
	// in-flight sends.
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, publisher KeyPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.KeyIssued, numWorkers),
		publisher: publisher,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.KeyIssued, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers exit once Stop has drained
// their channel, or immediately when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go func(id int, ch <-chan domain.KeyIssued) {
			defer d.wg.Done()
			d.runWorker(ctx, id, ch)
		}(i, ch)
	}
}

// Stop refuses new events and waits for the workers to publish what is
// already buffered. It returns ctx.Err() if the drain outlives ctx; events
// still queued at that point are lost. Workers must still be running, so
// call Stop before cancelling the context passed to Start.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		pending := 0
		for _, ch := range d.workers {
			pending += len(ch)
		}
		d.log.Warn().Int("pending", pending).Msg("key dispatcher drain interrupted")
		return ctx.Err()
	}
}

// NotifyKeyIssued enqueues the event on the worker owning its email. It
// blocks only while that worker's buffer is full, and gives up when ctx ends.
func (d *Dispatcher) NotifyKeyIssued(ctx context.Context, event domain.KeyIssued) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	idx := d.shardIndex(event.Email)
	select {
	case d.workers[idx] <- event:
		metrics.KeyDeliveryQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps an email deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.KeyIssued) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			metrics.KeyDeliveryQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

			// The request context is gone by now; publish under the worker's.
			if err := d.publisher.Publish(ctx, event); err != nil {
				metrics.KeyDeliveriesTotal.WithLabelValues("failed").Inc()
				d.log.Error().Err(err).
					Str("account_id", event.AccountID).
					Int("worker_id", id).
					Msg("key delivery failed")
				continue
			}
			metrics.KeyDeliveriesTotal.WithLabelValues("published").Inc()
			d.log.Debug().Str("account_id", event.AccountID).Int("worker_id", id).Msg("key published")
		}
	}
}
