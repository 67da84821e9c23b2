package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/sous/server/metrics"
)

func TestQueueMiddleware(t *testing.T) {
	t.Run("admits and releases", func(t *testing.T) {
		m := metrics.NewMetrics()
		qm := NewQueueMiddleware(5, m)

		handler := qm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, 1, qm.GetQueueSize())
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, qm.GetQueueSize())
		assert.Equal(t, int32(0), qm.GetProcessing())
		assert.Equal(t, float64(0), testutil.ToFloat64(m.QueueLength))
	})

	t.Run("rejects when full", func(t *testing.T) {
		m := metrics.NewMetrics()
		qm := NewQueueMiddleware(2, m)

		release := make(chan struct{})
		var entered sync.WaitGroup
		entered.Add(2)
		handler := qm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entered.Done()
			<-release
			w.WriteHeader(http.StatusOK)
		}))

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
			}()
		}
		entered.Wait()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"Queue is full","ingredients":[]}`, rec.Body.String())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.QueueRejected))
		assert.Equal(t, float64(2), testutil.ToFloat64(m.QueueLength))

		close(release)
		wg.Wait()
		assert.Equal(t, 0, qm.GetQueueSize())
	})

	t.Run("max size can change at runtime", func(t *testing.T) {
		qm := NewQueueMiddleware(0, nil)
		handler := qm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		qm.SetMaxSize(1)
		assert.Equal(t, int64(1), qm.GetMaxSize())
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("slot released on panic", func(t *testing.T) {
		qm := NewQueueMiddleware(1, nil)
		handler := qm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		assert.Panics(t, func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
		})
		assert.Equal(t, 0, qm.GetQueueSize())
	})
}

func TestQueueShutdown(t *testing.T) {
	qm := NewQueueMiddleware(1, nil)
	release := make(chan struct{})
	entered := make(chan struct{})
	handler := qm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	go handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, qm.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, qm.Shutdown(context.Background()))
}
