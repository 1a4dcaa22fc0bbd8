package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tinyland-inc/wspanel/pkg/logger"
)

// ErrRecorderClosed is returned when recording on a closed Recorder.
var ErrRecorderClosed = errors.New("history recorder closed")

// Recorder applies Touch for each recorded URL on a single worker goroutine,
// so read-then-update sequences against the store never interleave. Failures
// are logged and dropped.
type Recorder struct {
	store   Store
	queue   chan string
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	now     func() time.Time
	timeout time.Duration
	hook    func(Entry, error)

	// mu makes the closed check and the enqueue atomic with respect to Close.
	mu     sync.RWMutex
	closed bool
}

// RecorderOption is a functional option for configuring a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source used for LastUsed.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithStoreTimeout bounds each read/update round trip.
func WithStoreTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRecordHook registers a callback invoked after every attempt with the
// written entry or the error that was swallowed.
func WithRecordHook(fn func(Entry, error)) RecorderOption {
	return func(r *Recorder) { r.hook = fn }
}

// NewRecorder starts a recorder with the given queue capacity.
func NewRecorder(store Store, queueSize int, opts ...RecorderOption) *Recorder {
	if queueSize <= 0 {
		queueSize = 16
	}
	r := &Recorder{
		store:   store,
		queue:   make(chan string, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		now:     time.Now,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// Record enqueues url without waiting for the store. When the queue is full
// the URL is dropped.
func (r *Recorder) Record(url string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- url:
		return nil
	default:
		logger.WarnCF("history", "Recorder queue full, dropping entry", map[string]any{"url": url})
		return nil
	}
}

func (r *Recorder) run() {
	defer close(r.stopped)
	for {
		select {
		case url := <-r.queue:
			r.apply(url)
		case <-r.done:
			for {
				select {
				case url := <-r.queue:
					r.apply(url)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) apply(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	entry, err := Touch(ctx, r.store, url, r.now())
	if err != nil {
		logger.WarnCF("history", "Failed to record URL", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
	} else {
		logger.DebugCF("history", "URL recorded", map[string]any{
			"url":   entry.URL,
			"count": entry.Count,
		})
	}
	if r.hook != nil {
		r.hook(entry, err)
	}
}

// Close stops accepting URLs, drains the queue and waits for the worker.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.done)
		r.mu.Unlock()
	})
	<-r.stopped
}
