// Package knowledge is the resilient client for the AWS Knowledge tool-call
// endpoint. Every logical operation is one HTTP POST carrying a JSON-RPC
// shaped envelope; the actual payload comes back as a JSON-encoded string
// nested inside result.content, which the client unwraps and validates
// structurally before use. The client owns the retry/backoff policy, the
// pagination loop for regional resource listings, and a per-run cache of
// region display names.
package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"

	"github.com/rodos/aws-region-watch/pkg/telemetry"
)

// DefaultEndpoint is the production knowledge service endpoint.
const DefaultEndpoint = "https://knowledge-mcp.global.api.aws"

// Tool names exposed by the knowledge service.
const (
	toolListRegions          = "aws___list_regions"
	toolRegionalAvailability = "aws___get_regional_availability"
)

const (
	// maxAttempts bounds retries for a single tool call.
	maxAttempts = 3

	// maxPages guards against a server that never stops paginating.
	maxPages = 100

	// requestTimeout is the per-request HTTP timeout.
	requestTimeout = 60 * time.Second
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Endpoint is the service URL. Defaults to DefaultEndpoint.
	Endpoint string

	// HTTPClient is the underlying HTTP client, shared across every call of
	// a run for connection reuse. Defaults to one with requestTimeout.
	HTTPClient *http.Client

	// Logger receives retry warnings and per-page progress.
	Logger *telemetry.Logger
}

// Client issues tool calls against the knowledge service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        *telemetry.Logger

	// schedule is the backoff wait table; tests shrink it.
	schedule []time.Duration

	// regionNames caches the region id to long name mapping for the
	// lifetime of one run. Never persisted.
	regionNames map[string]string
}

// New creates a client for the given configuration.
func New(cfg ClientConfig) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.FromContext(context.Background())
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: cfg.HTTPClient,
		log:        cfg.Logger,
		schedule:   defaultBackoffSchedule,
	}
}

// Endpoint returns the service URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// rpcRequest is the JSON-RPC shaped envelope for a tool call.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	ID      int       `json:"id"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// rpcResponse is the outer response envelope. The payload proper is the
// JSON-encoded string in Result.Content[0].Text.
type rpcResponse struct {
	Result *rpcResult      `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type rpcResult struct {
	Content []rpcContent `json:"content"`
}

type rpcContent struct {
	Text string `json:"text"`
}

// Call performs a tool call with retries and returns the decoded payload.
// Retryable failures (network errors, timeouts, 429, 5xx) are retried up to
// maxAttempts with the backoff schedule; a parseable Retry-After header on a
// 429 overrides the schedule for that attempt. Everything else escalates
// immediately.
func (c *Client) Call(ctx context.Context, tool string, args map[string]interface{}) (map[string]interface{}, error) {
	c.log.Debugf("tool call %s with %v", tool, args)

	operation := func() (map[string]interface{}, error) {
		return c.doCall(ctx, tool, args)
	}

	payload, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&scheduleBackOff{schedule: c.schedule}),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.WithError(err).Warnf("%s failed, retrying in %s", tool, wait)
		}),
	)
	if err != nil {
		if IsRetryable(err) {
			return nil, fmt.Errorf("request for %s failed after %d attempts: %w", tool, maxAttempts, err)
		}
		return nil, err
	}
	return payload, nil
}

// doCall performs a single request/response cycle and classifies failures.
func (c *Client) doCall(ctx context.Context, tool string, args map[string]interface{}) (map[string]interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		ID:      1,
		Params:  rpcParams{Name: tool, Arguments: args},
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to encode request for %s: %w", tool, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request for %s: %w", tool, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection failures and timeouts are both retryable.
		return nil, NewTransientError("network error calling "+tool, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		throttled := &Error{Kind: KindThrottled, Message: "rate limited calling " + tool, StatusCode: resp.StatusCode}
		if seconds, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return nil, errors.Join(throttled, backoff.RetryAfter(seconds))
		}
		return nil, throttled
	case resp.StatusCode >= 500:
		return nil, &Error{
			Kind:       KindTransient,
			Message:    "server error calling " + tool,
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(&Error{
			Kind:       KindClient,
			Message:    fmt.Sprintf("request for %s failed: %s", tool, http.StatusText(resp.StatusCode)),
			StatusCode: resp.StatusCode,
		})
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransientError("failed to read response for "+tool, err)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, backoff.Permanent(&Error{Kind: KindProtocol, Message: "invalid JSON response from " + tool, Err: err})
	}
	if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		return nil, backoff.Permanent(NewProtocolError(fmt.Sprintf("service error from %s: %s", tool, envelope.Error)))
	}
	if envelope.Result == nil {
		return nil, backoff.Permanent(NewProtocolError(`response missing "result"`))
	}
	if len(envelope.Result.Content) == 0 {
		return nil, backoff.Permanent(NewProtocolError(`response missing "result.content"`))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(envelope.Result.Content[0].Text), &payload); err != nil {
		return nil, backoff.Permanent(&Error{Kind: KindProtocol, Message: "invalid JSON in response content from " + tool, Err: err})
	}
	return payload, nil
}

// payloadResult extracts the content.result value from a decoded payload.
func payloadResult(payload map[string]interface{}) (interface{}, error) {
	content, ok := payload["content"]
	if !ok {
		return nil, NewProtocolError(`payload missing "content"`)
	}
	contentMap, ok := content.(map[string]interface{})
	if !ok {
		return nil, NewProtocolError(`payload "content" is not an object`)
	}
	result, ok := contentMap["result"]
	if !ok {
		return nil, NewProtocolError(`payload missing "content.result"`)
	}
	return result, nil
}

// ListRegions fetches the region id to long name mapping. The result is
// cached for the client's lifetime, so repeated lookups within a run cost
// one call.
func (c *Client) ListRegions(ctx context.Context) (map[string]string, error) {
	if c.regionNames != nil {
		return c.regionNames, nil
	}

	payload, err := c.Call(ctx, toolListRegions, nil)
	if err != nil {
		return nil, err
	}
	result, err := payloadResult(payload)
	if err != nil {
		return nil, err
	}
	list, ok := result.([]interface{})
	if !ok {
		return nil, NewProtocolError(`payload "content.result" is not a list`)
	}

	regions := make(map[string]string, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, NewProtocolError("region entry is not an object")
		}
		id, ok := entry["region_id"].(string)
		if !ok {
			return nil, NewProtocolError(`region entry missing "region_id"`)
		}
		longName, ok := entry["region_long_name"].(string)
		if !ok {
			return nil, NewProtocolError(`region entry missing "region_long_name"`)
		}
		regions[id] = longName
	}

	c.regionNames = regions
	return regions, nil
}

// resultKey returns the payload key holding the availability map for a
// resource type.
func resultKey(resourceType string) string {
	if resourceType == "product" {
		return "products"
	}
	return "service_apis"
}

// ListRegionalResources fetches the full availability map for one resource
// type in one region, following continuation tokens until the server stops
// returning them. Pages merge into a single map; later duplicate keys
// overwrite earlier ones. Exceeding maxPages is a fatal pagination error.
func (c *Client) ListRegionalResources(ctx context.Context, region, resourceType string) (map[string]string, error) {
	key := resultKey(resourceType)
	resources := make(map[string]string)
	nextToken := ""

	for page := 1; page <= maxPages; page++ {
		args := map[string]interface{}{
			"region":        region,
			"resource_type": resourceType,
		}
		if nextToken != "" {
			args["next_token"] = nextToken
		}

		payload, err := c.Call(ctx, toolRegionalAvailability, args)
		if err != nil {
			return nil, err
		}
		result, err := payloadResult(payload)
		if err != nil {
			return nil, err
		}
		resultMap, ok := result.(map[string]interface{})
		if !ok {
			return nil, NewProtocolError(`payload "content.result" is not an object`)
		}

		pageRaw, ok := resultMap[key]
		if !ok {
			return nil, NewProtocolError(fmt.Sprintf("payload missing %q for %s in %s", key, resourceType, region))
		}
		pageMap, ok := pageRaw.(map[string]interface{})
		if !ok {
			return nil, NewProtocolError(fmt.Sprintf("payload %q is not an object", key))
		}
		for name, status := range pageMap {
			s, ok := status.(string)
			if !ok {
				return nil, NewProtocolError(fmt.Sprintf("status for %q is not a string", name))
			}
			resources[name] = s
		}

		c.log.Debugf("page %d: fetched %d %ss for %s", page, len(pageMap), resourceType, region)

		token, ok := resultMap["next_token"]
		if !ok || token == nil {
			return resources, nil
		}
		tokenStr, ok := token.(string)
		if !ok {
			return nil, NewProtocolError(`payload "next_token" is not a string`)
		}
		if tokenStr == "" {
			return resources, nil
		}
		nextToken = tokenStr
	}

	return nil, &Error{
		Kind:    KindPagination,
		Message: fmt.Sprintf("exceeded maximum pages (%d) fetching %ss for %s", maxPages, resourceType, region),
	}
}
