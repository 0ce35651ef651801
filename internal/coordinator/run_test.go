package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

func newAlwaysSuccessWorker(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transport.DetectRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := transport.DetectResponse{
			RequestID:   req.RequestID,
			ServiceName: "layering",
			Status:      transport.StatusSuccess,
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newAlwaysFailingWorker(t *testing.T, callCount *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(callCount, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
}

func newEchoAggregator(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transport.AggregateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		var failed []string
		merged := 0
		for _, res := range req.Results {
			if res.Status == "SUCCESS" {
				merged += len(res.Results)
			} else {
				failed = append(failed, res.ServiceName)
			}
		}
		resp := transport.AggregateResponse{
			Status:         transport.AggregateCompleted,
			MergedCount:    merged,
			FailedServices: failed,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

// TestCoordinatorPartialFailure is spec §8 Scenario E: one worker
// succeeds, the other is exhausted after retries, and the coordinator
// still reaches a completed summary naming the failed service.
func TestCoordinatorPartialFailure(t *testing.T) {
	goodWorker := newAlwaysSuccessWorker(t)
	defer goodWorker.Close()

	var failCalls int32
	badWorker := newAlwaysFailingWorker(t, &failCalls)
	defer badWorker.Close()

	aggregator := newEchoAggregator(t)
	defer aggregator.Close()

	retry := RetryPolicy{MaxRetries: 1, BackoffBase: 1}

	cfg := RunConfig{
		RequestID: "req-e",
		Events:    nil,
		Workers: []WorkerSpec{
			{Name: "layering", Client: NewWorkerClient(goodWorker.URL, "", time.Second)},
			{Name: "wash_trading", Client: NewWorkerClient(badWorker.URL, "", time.Second)},
		},
		Aggregator: NewAggregatorClient(aggregator.URL, "", time.Second),
		Retry:      retry,
	}

	summary, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != transport.AggregateCompleted {
		t.Fatalf("expected completed status, got %s", summary.Status)
	}
	if len(summary.FailedServices) != 1 || summary.FailedServices[0] != "wash_trading" {
		t.Fatalf("expected wash_trading to be the only failed service, got %v", summary.FailedServices)
	}
	// MaxRetries=1 means at most 2 total attempts against the failing worker.
	if calls := atomic.LoadInt32(&failCalls); calls > 2 {
		t.Fatalf("expected at most 2 attempts against the failing worker, got %d", calls)
	}
}

func TestCoordinatorAllWorkersSucceed(t *testing.T) {
	workerA := newAlwaysSuccessWorker(t)
	defer workerA.Close()
	workerB := newAlwaysSuccessWorker(t)
	defer workerB.Close()
	aggregator := newEchoAggregator(t)
	defer aggregator.Close()

	cfg := RunConfig{
		RequestID: "req-ok",
		Workers: []WorkerSpec{
			{Name: "layering", Client: NewWorkerClient(workerA.URL, "", time.Second)},
			{Name: "wash_trading", Client: NewWorkerClient(workerB.URL, "", time.Second)},
		},
		Aggregator: NewAggregatorClient(aggregator.URL, "", time.Second),
		Retry:      DefaultRetryPolicy(),
	}

	summary, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.FailedServices) != 0 {
		t.Fatalf("expected no failed services, got %v", summary.FailedServices)
	}
}
