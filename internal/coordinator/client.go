package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

// WorkerClient calls one worker's `detect` endpoint.
type WorkerClient struct {
	http *resty.Client
	url  string
}

// NewWorkerClient builds a client against a single worker's base URL,
// with a per-call timeout matching ALGORITHM_TIMEOUT_SECONDS. Retries
// are driven explicitly by the coordinator's retry loop rather than by
// resty's own retry machinery, since a timeout/transient failure here
// must update a ServiceStatus record, not just resend silently.
func NewWorkerClient(url, apiKey string, timeout time.Duration) *WorkerClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("X-Surveillance-Api-Key", apiKey)
	}
	return &WorkerClient{http: client, url: url}
}

// Detect issues one `detect` call, returning the decoded response on a
// 2xx, or a *transport.ClassifiedError on failure — KindTransientWorker
// for anything retryable (connection failure, timeout, 5xx), otherwise
// KindPermanentWorker.
func (c *WorkerClient) Detect(ctx context.Context, req transport.DetectRequest) (*transport.DetectResponse, error) {
	var resp transport.DetectResponse
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.url + "/detect")

	if err != nil {
		return nil, transport.Classify(transport.KindTransientWorker, fmt.Errorf("calling worker: %w", err))
	}

	switch {
	case httpResp.StatusCode() >= 500:
		return nil, transport.Classify(transport.KindTransientWorker, fmt.Errorf("worker returned %d", httpResp.StatusCode()))
	case httpResp.StatusCode() >= 400:
		return nil, transport.Classify(transport.KindPermanentWorker, fmt.Errorf("worker returned %d", httpResp.StatusCode()))
	}

	if resp.Status == transport.StatusFailure {
		reason := "unknown"
		if resp.Error != nil {
			reason = *resp.Error
		}
		return nil, transport.Classify(transport.KindPermanentWorker, fmt.Errorf("worker reported failure: %s", reason))
	}

	return &resp, nil
}
