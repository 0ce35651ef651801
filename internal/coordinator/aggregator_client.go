package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

// AggregatorClient calls the aggregator's `aggregate` endpoint.
type AggregatorClient struct {
	http *resty.Client
	url  string
}

func NewAggregatorClient(url, apiKey string, timeout time.Duration) *AggregatorClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("X-Surveillance-Api-Key", apiKey)
	}
	return &AggregatorClient{http: client, url: url}
}

func (c *AggregatorClient) Aggregate(ctx context.Context, req transport.AggregateRequest) (*transport.AggregateResponse, error) {
	var resp transport.AggregateResponse
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.url + "/aggregate")
	if err != nil {
		return nil, transport.Classify(transport.KindTransientWorker, fmt.Errorf("calling aggregator: %w", err))
	}
	if httpResp.StatusCode() >= 400 && resp.Status == "" {
		return nil, transport.Classify(transport.KindPermanentWorker, fmt.Errorf("aggregator returned %d", httpResp.StatusCode()))
	}
	return &resp, nil
}
