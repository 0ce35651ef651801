package coordinator

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/rawblock/trade-surveillance-engine/internal/fingerprint"
	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

// WorkerSpec names one expected worker and the client to reach it.
type WorkerSpec struct {
	Name   string
	Client *WorkerClient
}

// RunConfig parameterises one coordinator run.
type RunConfig struct {
	RequestID  string
	Events     []domain.TransactionEvent
	Workers    []WorkerSpec
	Aggregator *AggregatorClient
	Retry      RetryPolicy
}

// Summary is the coordinator's top-level result for one request.
type Summary struct {
	RequestID       string
	Status          transport.AggregateStatus
	EventCount      int
	AggregatedCount int
	FailedServices  []string
	Error           string
}

// Run drives the fan-out: call every worker with retry/backoff, wait
// for every worker to reach final status, then hand the merged request
// to the aggregator.
func Run(ctx context.Context, cfg RunConfig) (Summary, error) {
	names := make([]string, 0, len(cfg.Workers))
	for _, w := range cfg.Workers {
		names = append(names, w.Name)
	}
	board := newStatusBoard(names)

	wire := make([]transport.EventWire, 0, len(cfg.Events))
	for _, e := range cfg.Events {
		wire = append(wire, transport.ToWireEvent(e))
	}
	eventFingerprint := fingerprint.Compute(cfg.Events)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, worker := range cfg.Workers {
		worker := worker
		group.Go(func() error {
			runWorker(groupCtx, worker, board, cfg.Retry, transport.DetectRequest{
				RequestID:        cfg.RequestID,
				EventFingerprint: eventFingerprint,
				Events:           wire,
			})
			return nil
		})
	}
	// Every per-worker goroutine reports its own failures onto the
	// status board instead of through the error return, so group.Wait
	// returns nil; a cancelled context shows up as EXHAUSTED entries on
	// the board.
	if err := group.Wait(); err != nil {
		return Summary{}, transport.Classify(transport.KindTransientWorker, err)
	}

	if !board.allFinal() {
		return Summary{}, transport.Classify(transport.KindCompleteness,
			fmt.Errorf("internal error: not every worker reached final status"))
	}

	statuses := board.snapshot(names)
	aggReq := transport.AggregateRequest{
		RequestID:        cfg.RequestID,
		ExpectedServices: names,
		Results:          toAlgorithmResponses(statuses),
	}

	aggResp, err := cfg.Aggregator.Aggregate(ctx, aggReq)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		RequestID:       cfg.RequestID,
		Status:          aggResp.Status,
		EventCount:      len(cfg.Events),
		AggregatedCount: aggResp.MergedCount,
		FailedServices:  aggResp.FailedServices,
	}
	if aggResp.Error != nil {
		summary.Error = *aggResp.Error
	}
	return summary, nil
}

// runWorker drives one worker through PENDING -> (retries) -> SUCCESS or
// EXHAUSTED, mutating its ServiceStatus on the shared board as it goes.
func runWorker(ctx context.Context, worker WorkerSpec, board *statusBoard, retry RetryPolicy, req transport.DetectRequest) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		resp, err := worker.Client.Detect(ctx, req)
		if err == nil {
			board.update(func(s *ServiceStatus) {
				s.Status = StatusSuccess
				s.FinalStatus = true
				s.RetryCount = attempt
				s.Result = decodeSequences(resp.Results)
			})(worker.Name)
			return
		}

		lastErr = err
		retryable := isRetryable(err)
		if !retryable || attempt >= retry.MaxRetries {
			board.update(func(s *ServiceStatus) {
				s.Status = StatusExhausted
				s.FinalStatus = true
				s.RetryCount = attempt
				s.Error = lastErr.Error()
			})(worker.Name)
			log.Printf("coordinator: worker %s exhausted after %d attempts: %v", worker.Name, attempt+1, lastErr)
			return
		}

		if sleepErr := retry.sleep(ctx, attempt); sleepErr != nil {
			board.update(func(s *ServiceStatus) {
				s.Status = StatusExhausted
				s.FinalStatus = true
				s.RetryCount = attempt
				s.Error = sleepErr.Error()
			})(worker.Name)
			return
		}
	}
}

func isRetryable(err error) bool {
	ce, ok := err.(*transport.ClassifiedError)
	return ok && ce.Retryable()
}

func decodeSequences(wire []transport.SequenceWire) []domain.SuspiciousSequence {
	out := make([]domain.SuspiciousSequence, 0, len(wire))
	for _, w := range wire {
		s, err := transport.FromWireSequence(w)
		if err != nil {
			log.Printf("coordinator: dropping malformed sequence from worker response: %v", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

func toAlgorithmResponses(statuses []ServiceStatus) []transport.AlgorithmResponse {
	out := make([]transport.AlgorithmResponse, 0, len(statuses))
	for _, s := range statuses {
		resp := transport.AlgorithmResponse{
			ServiceName: s.ServiceName,
			Status:      string(s.Status),
			FinalStatus: s.FinalStatus,
		}
		for _, r := range s.Result {
			resp.Results = append(resp.Results, transport.ToWireSequence(r))
		}
		if s.Error != "" {
			err := s.Error
			resp.Error = &err
		}
		out = append(out, resp)
	}
	return out
}
