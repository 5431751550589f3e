package rotation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ordermesh/tokengate/internal/logging"
)

func TestSchedulerRotatesDueProviders(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"refresh-1"}`))
	}))
	defer srv.Close()

	store := NewStore()
	logger := logging.NewWithWriter(testWriter{t}, false)
	engine := NewEngine(store, logger)
	secrets := NewSecretEngine(store, engine, logger)

	cfg := testProvider("marketplace", srv.URL)
	store.Init("marketplace", "refresh-0", time.Hour)

	sched := NewScheduler(store, engine, secrets, []*ProviderConfig{cfg}, logger)
	sched.SetTick(10 * time.Millisecond)
	sched.Start(context.Background())
	defer sched.Stop()

	// Never-rotated providers are due immediately.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 1
	}, time.Second, 5*time.Millisecond)

	// Freshly rotated tokens are not re-rotated before the interval elapses.
	prev := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, prev, atomic.LoadInt32(&calls))
}

func TestSchedulerSurvivesFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := NewStore()
	logger := logging.NewWithWriter(testWriter{t}, false)
	engine := NewEngine(store, logger)
	secrets := NewSecretEngine(store, engine, logger)

	cfg := testProvider("marketplace", srv.URL)
	store.Init("marketplace", "refresh-0", time.Hour)

	sched := NewScheduler(store, engine, secrets, []*ProviderConfig{cfg}, logger)
	sched.SetTick(10 * time.Millisecond)
	sched.Start(context.Background())
	defer sched.Stop()

	// A failing rotation keeps being retried on subsequent ticks.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopIsDeterministic(t *testing.T) {
	store := NewStore()
	logger := logging.NewWithWriter(testWriter{t}, false)
	engine := NewEngine(store, logger)
	secrets := NewSecretEngine(store, engine, logger)

	sched := NewScheduler(store, engine, secrets, nil, logger)
	sched.SetTick(10 * time.Millisecond)
	sched.Start(context.Background())

	done := make(chan struct{})
	go func() {
		sched.Stop()
		sched.Stop() // idempotent
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
