package agentmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentmap/dashboard/internal/domain"
	"github.com/agentmap/dashboard/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Endpoint names used for logging and metrics.
const (
	endpointClassify = "classify"
	endpointMatch    = "match"
	endpointRegister = "register"
	endpointList     = "list_mse"
	endpointGet      = "get_mse"
	endpointHealth   = "health"
)

// maxErrorBody caps how much of a failed response is read for the detail message.
const maxErrorBody = 64 << 10

// Options configure a Client.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Logger            *zap.Logger
}

// Client handles communication with the AgentMap classification and scoring API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	log         *zap.Logger
}

// NewClient creates a new AgentMap API client
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		log:         opts.Logger.Named("agentmap"),
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Classify triggers classification of an MSE
func (c *Client) Classify(ctx context.Context, mseID int64) (*domain.ClassifyResult, error) {
	var out domain.ClassifyResult
	if err := c.do(ctx, endpointClassify, http.MethodPost, "/classify/", nil, domain.ClassifyRequest{MSEID: mseID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Match requests the ranked SNP list for an MSE
func (c *Client) Match(ctx context.Context, mseID int64, topK int) (*domain.MatchResponse, error) {
	var wire matchResponseWire
	if err := c.do(ctx, endpointMatch, http.MethodPost, "/match/", nil, domain.MatchRequest{MSEID: mseID, TopK: topK}, &wire); err != nil {
		return nil, err
	}
	resp, err := MapMatchResponse(&wire)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, remotePayload(de)
		}
		return nil, err
	}
	return resp, nil
}

// RegisterMSE registers a new MSE. Fields are not validated locally.
func (c *Client) RegisterMSE(ctx context.Context, reg domain.MSERegistration) (*domain.MSE, error) {
	if reg.Language == "" {
		reg.Language = "en"
	}
	var out domain.MSE
	if err := c.do(ctx, endpointRegister, http.MethodPost, "/mse/", nil, reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMSEs returns the review queue
func (c *Client) ListMSEs(ctx context.Context, query domain.ListMSEsQuery) ([]domain.MSE, error) {
	params := url.Values{}
	limit := query.Limit
	if limit <= 0 {
		limit = domain.DefaultReviewLimit
	}
	params.Set("limit", strconv.Itoa(limit))
	if query.Skip > 0 {
		params.Set("skip", strconv.Itoa(query.Skip))
	}
	if query.State != "" {
		params.Set("state", query.State)
	}

	var out []domain.MSE
	if err := c.do(ctx, endpointList, http.MethodGet, "/mse/", params, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.MSE{}
	}
	return out, nil
}

// GetMSE retrieves a single MSE by id
func (c *Client) GetMSE(ctx context.Context, id int64) (*domain.MSE, error) {
	var out domain.MSE
	if err := c.do(ctx, endpointGet, http.MethodGet, "/mse/"+strconv.FormatInt(id, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the AgentMap API liveness endpoint
func (c *Client) Health(ctx context.Context) (*domain.RemoteHealth, error) {
	var out domain.RemoteHealth
	if err := c.do(ctx, endpointHealth, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes one request without retries and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, endpoint, method, path string, params url.Values, body, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(domain.KindOf(err))
		}
		metrics.RemoteCallsTotal.WithLabelValues(endpoint, outcome).Inc()
		c.log.Debug("remote call finished",
			zap.String("endpoint", endpoint),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		// Wait refuses up front when the next token lands past the deadline.
		if ctx.Err() == nil {
			return domain.NewError(domain.KindTimeout, fmt.Sprintf("%s request would exceed its deadline", endpoint), err)
		}
		return transportError(ctx, endpoint, err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.NewError(domain.KindInvalidInput, "failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return domain.NewError(domain.KindInvalidInput, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "agentmap-dashboard/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("remote call failed", zap.String("endpoint", endpoint), zap.Error(err))
		return transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Info("remote call rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return rejectedError(endpoint, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return remotePayload(de)
		}
		return remotePayload(domain.NewError(domain.KindInvalidInput, fmt.Sprintf("failed to decode %s response", endpoint), err))
	}
	return nil
}

// transportError maps a failure before any response arrived to an error kind.
func transportError(ctx context.Context, endpoint string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, fmt.Sprintf("%s request timed out", endpoint), err)
	}
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindCanceled, fmt.Sprintf("%s request canceled", endpoint), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewError(domain.KindTimeout, fmt.Sprintf("%s request timed out", endpoint), err)
	}
	return domain.NewError(domain.KindRemoteUnavailable, fmt.Sprintf("AgentMap API unavailable: %v", rootCause(err)), err)
}

// remotePayload marks a decode or validation failure as the AgentMap API's fault.
func remotePayload(de *domain.Error) *domain.Error {
	de.Remote = true
	return de
}

// rejectedError builds a RemoteRejected error whose message is the payload's
// detail when present.
func rejectedError(endpoint string, status int, raw []byte) error {
	msg := detailMessage(raw)
	if msg == "" {
		msg = defaultMessage(endpoint, status)
	}
	return &domain.Error{Kind: domain.KindRemoteRejected, Message: msg, Status: status}
}

// detailMessage extracts "detail" from an error body. FastAPI validation
// errors carry a list of {msg} objects instead of a string.
func detailMessage(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func defaultMessage(endpoint string, status int) string {
	switch endpoint {
	case endpointClassify:
		return fmt.Sprintf("Classification failed (status %d)", status)
	case endpointMatch:
		return fmt.Sprintf("Match request failed (status %d)", status)
	case endpointRegister:
		return fmt.Sprintf("Registration failed (status %d)", status)
	}
	return fmt.Sprintf("AgentMap API returned status %d", status)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
