package observer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/observer"
)

func enqueueEvent(t *testing.T, client *redis.Client, event core.Event) {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, client.RPush(context.Background(), observer.QueueKey, raw).Err())
}

func runConsumer(t *testing.T, consumer *observer.Consumer, duration time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = consumer.Run(ctx)
		close(done)
	}()
	<-ctx.Done()
	<-done
}

func TestConsumer_ErrorThreshold(t *testing.T) {
	var webhookHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&webhookHits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestRedis(t)
	for i := 0; i < 5; i++ {
		enqueueEvent(t, client, core.Event{EventType: core.EventErrorOccurred, ErrorCode: "INTERNAL_ERROR", ThreadID: "t1"})
	}

	consumer := observer.NewConsumer(client, observer.NewAlerter(server.URL), nil, observer.Config{AnomalyDetectionEnabled: true})
	runConsumer(t, consumer, 200*time.Millisecond)

	require.GreaterOrEqual(t, atomic.LoadInt32(&webhookHits), int32(1))
}

func TestConsumer_PromptInjectionAnomaly(t *testing.T) {
	var webhookHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&webhookHits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestRedis(t)
	enqueueEvent(t, client, core.Event{EventType: core.EventPromptInjectionDetect, ThreadID: "t1", UserID: "u1"})

	consumer := observer.NewConsumer(client, observer.NewAlerter(server.URL), nil, observer.Config{AnomalyDetectionEnabled: true})
	runConsumer(t, consumer, 200*time.Millisecond)

	require.Equal(t, int32(1), atomic.LoadInt32(&webhookHits))
}

func TestConsumer_PeriodicLatencyReport(t *testing.T) {
	client := newTestRedis(t)
	for i := 0; i < 100; i++ {
		latency := int64(i + 1)
		enqueueEvent(t, client, core.Event{EventType: core.EventRequestCompleted, LatencyMS: &latency})
	}

	consumer := observer.NewConsumer(client, observer.NewAlerter(""), nil, observer.DefaultConfig())
	var report observer.LatencyReport
	var reported bool
	consumer.OnReport(func(r observer.LatencyReport) {
		report = r
		reported = true
	})
	runConsumer(t, consumer, 300*time.Millisecond)

	require.True(t, reported)
	require.Equal(t, 100, report.SampleCount)
	require.InDelta(t, 50.5, report.Avg, 0.01)
	require.Equal(t, float64(50), report.P50)
	require.Equal(t, float64(95), report.P95)
	require.Equal(t, float64(99), report.P99)
}

func TestConsumer_IgnoresUnknownEventType(t *testing.T) {
	client := newTestRedis(t)
	require.NoError(t, client.RPush(context.Background(), observer.QueueKey, []byte(`{"event_type":"SOMETHING_NEW"}`)).Err())

	consumer := observer.NewConsumer(client, observer.NewAlerter(""), nil, observer.DefaultConfig())
	require.NotPanics(t, func() {
		runConsumer(t, consumer, 150*time.Millisecond)
	})
}
