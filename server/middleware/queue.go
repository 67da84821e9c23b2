package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue/v2"
	serr "github.com/teilomillet/sous/errors"
	"github.com/teilomillet/sous/server/metrics"
)

// QueueMiddleware bounds the number of requests admitted at once. Each
// admitted request holds a slot in a FIFO queue until it completes; once the
// queue is full, further requests are rejected with 503.
type QueueMiddleware struct {
	queue      *queue.Queue[struct{}]
	maxSize    atomic.Int64
	mu         sync.RWMutex
	processing atomic.Int32
	metrics    *metrics.Metrics
}

// NewQueueMiddleware creates a queue admitting at most maxSize requests. m may be nil.
func NewQueueMiddleware(maxSize int64, m *metrics.Metrics) *QueueMiddleware {
	qm := &QueueMiddleware{
		queue:   queue.New[struct{}](),
		metrics: m,
	}
	qm.maxSize.Store(maxSize)
	return qm
}

// SetMaxSize updates the limit; it applies to the next admission check.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.maxSize.Store(size)
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	return qm.maxSize.Load()
}

// GetQueueSize returns the number of admitted requests.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.queue.Length()
}

// GetProcessing returns the number of requests currently being processed.
func (qm *QueueMiddleware) GetProcessing() int32 {
	return qm.processing.Load()
}

// Shutdown waits for admitted requests to finish or ctx to expire.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if qm.GetQueueSize() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Handler admits or rejects the request and releases its slot on completion,
// including when the downstream handler panics.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qm.mu.Lock()
		if int64(qm.queue.Length()) >= qm.maxSize.Load() {
			qm.mu.Unlock()
			if qm.metrics != nil {
				qm.metrics.QueueRejected.Inc()
			}
			serr.WriteError(w, serr.NewQueueFullError(GetRequestID(r.Context())))
			return
		}

		qm.queue.Add(struct{}{})
		qm.setLength()
		qm.mu.Unlock()

		qm.processing.Add(1)
		defer func() {
			qm.processing.Add(-1)
			qm.mu.Lock()
			qm.queue.Remove()
			qm.setLength()
			qm.mu.Unlock()
		}()

		next.ServeHTTP(w, r)
	})
}

// setLength must be called with mu held.
func (qm *QueueMiddleware) setLength() {
	if qm.metrics != nil {
		qm.metrics.QueueLength.Set(float64(qm.queue.Length()))
	}
}
