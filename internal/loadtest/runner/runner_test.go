package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lghttp "github.com/wesleyorama2/loadgate/internal/http"
	"github.com/wesleyorama2/loadgate/internal/loadtest"
	"github.com/wesleyorama2/loadgate/internal/loadtest/verdict"
)

func newRunner(baseURL string, opts ...Option) *Runner {
	client := lghttp.NewClient(lghttp.WithBaseURL(baseURL))
	scheduler := loadtest.NewScheduler(loadtest.NewHTTPExecutor(client))
	return New(scheduler, opts...)
}

func healthBatch(n int) loadtest.BatchSpec {
	return loadtest.BatchSpec{
		Name:          "health",
		Request:       loadtest.RequestSpec{Endpoint: "/health", Method: loadtest.MethodGet, Timeout: 2 * time.Second},
		TotalRequests: n,
		Concurrency:   5,
	}
}

func TestRunner_AllSuccessful(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	result := newRunner(server.URL, WithName("smoke")).Run(context.Background(), []loadtest.BatchSpec{healthBatch(10)})

	require.Len(t, result.Batches, 1)
	b := result.Batches[0]
	require.NoError(t, b.Err)
	assert.Equal(t, 10, b.Stats.TotalRequests)
	assert.Equal(t, 0, b.Stats.FailedRequests)
	assert.InDelta(t, 100.0, b.Stats.SuccessRate, 1e-9)
	assert.True(t, b.Verdict.Passed)
	assert.Empty(t, b.Verdict.Reasons)

	assert.True(t, result.Passed)
	assert.Equal(t, 0, result.ExitCode())
	assert.Equal(t, "smoke", result.Name)
	_, err := uuid.Parse(result.ID)
	assert.NoError(t, err)
	assert.False(t, result.EndTime.Before(result.StartTime))
}

func TestRunner_UnreachableTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result := newRunner(url).Run(context.Background(), []loadtest.BatchSpec{healthBatch(10)})

	require.Len(t, result.Batches, 1)
	b := result.Batches[0]
	require.NoError(t, b.Err)
	assert.Zero(t, b.Stats.SuccessRate)
	assert.Equal(t, 10, b.Stats.TransportFailures)
	assert.Zero(t, b.Stats.AvgLatency)
	assert.NotEmpty(t, b.Stats.DistinctErrors)

	assert.False(t, b.Verdict.Passed)
	require.NotEmpty(t, b.Verdict.Reasons)
	assert.Equal(t, "success_rate", b.Verdict.Reasons[0].Check)
	assert.Equal(t, 1, result.ExitCode())
}

func TestRunner_InvalidBatchDoesNotStopRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bad := healthBatch(10)
	bad.Name = "bad"
	bad.Concurrency = 0

	result := newRunner(server.URL).Run(context.Background(), []loadtest.BatchSpec{bad, healthBatch(5)})

	require.Len(t, result.Batches, 2)
	assert.Error(t, result.Batches[0].Err)
	assert.NotEmpty(t, result.Batches[0].Error)
	assert.Nil(t, result.Batches[0].Stats)

	require.NoError(t, result.Batches[1].Err)
	assert.True(t, result.Batches[1].Passed())

	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.ExitCode())
}

func TestRunner_LatencyAdvisoryKeepsExitCodeZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	th := verdict.DefaultThresholds()
	th.MaxAvgLatency = time.Millisecond

	result := newRunner(server.URL, WithThresholds(th)).Run(context.Background(), []loadtest.BatchSpec{healthBatch(4)})

	require.Len(t, result.Batches, 1)
	v := result.Batches[0].Verdict
	require.NotNil(t, v)
	assert.True(t, v.Passed)
	require.Len(t, v.Reasons, 1)
	assert.Equal(t, verdict.SeverityAdvisory, v.Reasons[0].Severity)
	assert.Equal(t, 0, result.ExitCode())
}

func TestRunner_HTTPFailuresFailGate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	result := newRunner(server.URL).Run(context.Background(), []loadtest.BatchSpec{healthBatch(6)})

	b := result.Batches[0]
	require.NoError(t, b.Err)
	assert.Equal(t, 6, b.Stats.HTTPFailures)
	assert.Empty(t, b.Stats.DistinctErrors)
	assert.Equal(t, map[int]int{503: 6}, b.Stats.StatusCodes)
	assert.False(t, result.Passed)
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newRunner("http://127.0.0.1:1").Run(ctx, []loadtest.BatchSpec{healthBatch(3)})

	require.Len(t, result.Batches, 1)
	assert.ErrorIs(t, result.Batches[0].Err, context.Canceled)
	assert.Equal(t, 1, result.ExitCode())
}
