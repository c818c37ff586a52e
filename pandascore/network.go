package pandascore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the PandaScore API root
const DefaultBaseURL = "https://api.pandascore.co"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RateLimitStatus is the last rate-limit bookkeeping seen in a response
type RateLimitStatus struct {
	Remaining *int
	ResetAt   *time.Time
}

// NetworkClient builds and performs HTTP calls against the API and maps
// response statuses onto APIError kinds.
type NetworkClient struct {
	baseURL        *url.URL
	httpClient     *http.Client
	defaultHeaders http.Header
	limiter        *rate.Limiter
	logger         zerolog.Logger

	mu        sync.Mutex
	rateLimit RateLimitStatus
}

// NewNetworkClient creates a client for baseURL. A nil limiter disables pacing.
func NewNetworkClient(baseURL string, httpClient *http.Client, defaultHeaders http.Header, limiter *rate.Limiter, logger zerolog.Logger) (*NetworkClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &NetworkClient{
		baseURL:        u,
		httpClient:     httpClient,
		defaultHeaders: defaultHeaders.Clone(),
		limiter:        limiter,
		logger:         logger,
	}, nil
}

// BuildRequest resolves path against the base URL and attaches params,
// headers and body. Slice params become repeated keys. Call headers override
// default headers; Accept is always application/json.
func (n *NetworkClient) BuildRequest(ctx context.Context, path, method string, params Params, headers http.Header, body []byte) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil || ref.IsAbs() || ref.Host != "" {
		return nil, invalidRequest("cannot resolve path %q", path)
	}

	u := *n.baseURL
	u.Path = strings.TrimSuffix(n.baseURL.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")

	query := ref.Query()
	for key, value := range params {
		for _, v := range expandValue(value) {
			query.Add(key, v)
		}
	}
	u.RawQuery = query.Encode()

	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, invalidRequest("build %s %s: %v", method, path, err)
	}

	for key, values := range n.defaultHeaders {
		req.Header[key] = append([]string(nil), values...)
	}
	for key, values := range headers {
		req.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// Execute performs req and decodes a successful body into v. A nil v skips
// decoding. The response headers and raw body are returned on success.
func (n *NetworkClient) Execute(req *http.Request, v any) (http.Header, []byte, error) {
	ctx := req.Context()

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			return nil, nil, &APIError{Kind: KindNetwork, Err: err}
		}
	}

	n.logger.Debug().
		Str("method", req.Method).
		Str("url", redactToken(req.URL)).
		Msg("Making PandaScore API request")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, transportError(ctx, err)
	}

	n.recordRateLimit(resp.Header)

	if err := classifyStatus(resp, req.URL, body); err != nil {
		n.logger.Debug().Int("status", resp.StatusCode).Err(err).Msg("PandaScore API request failed")
		return nil, nil, err
	}

	if v != nil {
		if err := decodeBody(body, v); err != nil {
			return nil, nil, err
		}
	}

	return resp.Header, body, nil
}

// RateLimitStatus returns the last recorded rate-limit headers
func (n *NetworkClient) RateLimitStatus() RateLimitStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rateLimit
}

func (n *NetworkClient) recordRateLimit(h http.Header) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if remaining, ok := headerInt(h, "X-Rate-Limit-Remaining"); ok {
		n.rateLimit.Remaining = &remaining
	}
	if reset, ok := headerInt(h, "X-Rate-Limit-Reset"); ok {
		t := time.Unix(int64(reset), 0).UTC()
		n.rateLimit.ResetAt = &t
	}
}

// classifyStatus maps a non-2xx response onto an APIError
func classifyStatus(resp *http.Response, reqURL *url.URL, body []byte) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return nil
	}

	parsed := parseErrorResponse(body)

	switch {
	case status == http.StatusUnauthorized:
		return &APIError{Kind: KindUnauthorized, StatusCode: status, Message: errorMessage(parsed, defaultUnauthorizedMessage), Response: parsed}
	case status == http.StatusForbidden:
		return &APIError{Kind: KindForbidden, StatusCode: status, Message: errorMessage(parsed, defaultForbiddenMessage), Response: parsed}
	case status == http.StatusNotFound:
		return &APIError{Kind: KindNotFound, StatusCode: status, Resource: redactToken(reqURL), Response: parsed}
	case status == http.StatusTooManyRequests:
		apiErr := &APIError{Kind: KindRateLimit, StatusCode: status, Response: parsed}
		if secs, ok := headerInt(resp.Header, "Retry-After"); ok {
			d := time.Duration(secs) * time.Second
			apiErr.RetryAfter = &d
		}
		if remaining, ok := headerInt(resp.Header, "X-Rate-Limit-Remaining"); ok {
			apiErr.Remaining = &remaining
		}
		return apiErr
	case status >= 500 && status < 600:
		return &APIError{Kind: KindServer, StatusCode: status, Message: errorMessage(parsed, ""), Response: parsed}
	default:
		// 400 and anything else unexpected
		return &APIError{Kind: KindHTTP, StatusCode: status, Response: parsed}
	}
}

func parseErrorResponse(body []byte) *ErrorResponse {
	if len(body) == 0 {
		return nil
	}
	var parsed ErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	if parsed.Error == "" && parsed.Message == "" {
		return nil
	}
	return &parsed
}

func errorMessage(parsed *ErrorResponse, fallback string) string {
	if parsed == nil {
		return fallback
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return fallback
}

// transportError maps an error from the HTTP transport. Context
// cancellation and deadlines are returned as the context's own error.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Err: err}
	}
	return &APIError{Kind: KindNetwork, Err: err}
}

func decodeBody(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &APIError{Kind: KindDecoding, Body: body, Err: err}
	}
	return nil
}

func headerInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// redactToken hides the token query parameter in logged URLs
func redactToken(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	if !q.Has("token") {
		return u.String()
	}
	q.Set("token", "REDACTED")
	clean := *u
	clean.RawQuery = q.Encode()
	return clean.String()
}
