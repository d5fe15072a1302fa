package transcript

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/savaki/linebot-assistant/pkg/logging"
	"github.com/savaki/linebot-assistant/pkg/models"
)

const (
	defaultQueueSize    = 64
	defaultWriteTimeout = 10 * time.Second
)

// ErrWriterClosed is returned by Close when called twice
var ErrWriterClosed = errors.New("transcript: async writer closed")

// WriteObserver receives the outcome of each asynchronous write
type WriteObserver interface {
	ObserveTranscriptWrite(status string)
}

type writeOp int

const (
	opPut writeOp = iota
	opDelete
	opFlush
)

type writeRequest struct {
	op         writeOp
	userID     string
	transcript models.Transcript
	result     chan error
}

// AsyncWriter wraps a Store and adds PutAsync. A single worker drains the
// queue so writes for the same user land in submission order. Delete and
// Flush go through the same queue and wait for their turn.
type AsyncWriter struct {
	Store

	queue    chan writeRequest
	logger   *logging.Logger
	observer WriteObserver
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// AsyncOption configures an AsyncWriter
type AsyncOption func(*AsyncWriter)

// WithObserver reports write outcomes to o
func WithObserver(o WriteObserver) AsyncOption {
	return func(w *AsyncWriter) {
		w.observer = o
	}
}

// WithWriteTimeout bounds each background write
func WithWriteTimeout(d time.Duration) AsyncOption {
	return func(w *AsyncWriter) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewAsyncWriter starts the background worker
func NewAsyncWriter(store Store, queueSize int, logger *logging.Logger, opts ...AsyncOption) *AsyncWriter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	w := &AsyncWriter{
		Store:   store,
		queue:   make(chan writeRequest, queueSize),
		logger:  logger,
		timeout: defaultWriteTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// PutAsync queues a write and returns immediately. Failures are logged,
// never returned; a full queue drops the write.
func (w *AsyncWriter) PutAsync(userID string, t models.Transcript) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Error("transcript write after close dropped", "user_id", userID)
		w.observe("dropped")
		return
	}

	select {
	case w.queue <- writeRequest{op: opPut, userID: userID, transcript: t}:
	default:
		w.logger.Error("transcript write queue full, dropping write", "user_id", userID)
		w.observe("dropped")
	}
}

// Delete removes the user's transcript after every write queued before it
// has landed, so a pending PutAsync cannot bring the transcript back.
func (w *AsyncWriter) Delete(ctx context.Context, userID string) error {
	err := w.submit(ctx, writeRequest{op: opDelete, userID: userID, result: make(chan error, 1)})
	if !errors.Is(err, ErrWriterClosed) {
		return err
	}

	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return w.Store.Delete(ctx, userID)
}

// Flush waits until every write queued before the call has landed or ctx
// expires
func (w *AsyncWriter) Flush(ctx context.Context) error {
	err := w.submit(ctx, writeRequest{op: opFlush, result: make(chan error, 1)})
	if !errors.Is(err, ErrWriterClosed) {
		return err
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit queues req, blocking while the queue is full, and waits for the
// worker to answer on req.result
func (w *AsyncWriter) submit(ctx context.Context, req writeRequest) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWriterClosed
	}
	select {
	case w.queue <- req:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for req := range w.queue {
		switch req.op {
		case opFlush:
			req.result <- nil
		case opDelete:
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			req.result <- w.Store.Delete(ctx, req.userID)
			cancel()
		default:
			w.put(req)
		}
	}
}

func (w *AsyncWriter) put(req writeRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.Store.Put(ctx, req.userID, req.transcript); err != nil {
		w.logger.Error("async transcript write failed", "user_id", req.userID, "error", err)
		w.observe("error")
		return
	}
	w.observe("ok")
}

// Close stops accepting writes and waits for queued writes to finish or
// for ctx to expire.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) observe(status string) {
	if w.observer != nil {
		w.observer.ObserveTranscriptWrite(status)
	}
}
