// Package slope is a client for the Slope actuarial modeling REST API.
//
// Authorize exchanges an API key and secret for a Session. A Session is
// immutable and safe for concurrent use; every operation hangs off it.
package slope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"slopectl/internal/apperrors"
	"slopectl/internal/observability"
	"slopectl/internal/transfer"
)

// Options configures how a Session reaches the API.
type Options struct {
	BaseURL string // e.g. https://api.slopesoftware.com/api/v1

	// HTTPClient serves authenticated API calls. Defaults to a client with a 60s timeout.
	HTTPClient *http.Client
	// StorageClient serves uploads and downloads against pre-signed URLs.
	// Defaults to a client with a 30m timeout.
	StorageClient *http.Client

	// RateLimit caps API requests per second across the Session. Zero disables it.
	RateLimit float64

	Metrics *observability.Metrics
}

// Session is an authorized connection to the API.
type Session struct {
	baseURL string
	token   string

	httpClient *http.Client
	storage    *transfer.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
}

type authorizeRequest struct {
	APIKey       string `json:"apiKey"`
	APISecretKey string `json:"apiSecretKey"`
}

type authorizeResponse struct {
	AccessToken string `json:"accessToken"`
}

// Authorize exchanges the API key and secret for a bearer token.
func Authorize(ctx context.Context, opts Options, apiKey, apiSecret string) (*Session, error) {
	if opts.BaseURL == "" {
		return nil, apperrors.Validation("apiUrl", "API URL is required")
	}
	if apiKey == "" || apiSecret == "" {
		return nil, apperrors.Validation("credentials", "API key and secret are required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	storageClient := opts.StorageClient
	if storageClient == nil {
		storageClient = &http.Client{Timeout: 30 * time.Minute}
	}

	s := &Session{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		storage:    transfer.New(storageClient, opts.Metrics),
		metrics:    opts.Metrics,
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	var resp authorizeResponse
	req := authorizeRequest{APIKey: apiKey, APISecretKey: apiSecret}
	if err := s.do(ctx, http.MethodPost, "/Authorize", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, apperrors.Decode("/Authorize", fmt.Errorf("missing accessToken"))
	}

	// The token is set once here and never changes afterwards.
	s.token = resp.AccessToken
	slog.Debug("Authorized with Slope API", "url", s.baseURL)
	return s, nil
}

// do sends one API request. in is JSON-encoded when non-nil; out is decoded
// from a 2xx response when non-nil. The bearer token is attached once the
// Session is authorized.
func (s *Session) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	op := method + " " + path

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return apperrors.Request(op, err)
		}
	}

	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return apperrors.Request(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.RecordAPIRequest(ctx, method, path, 0, time.Since(start).Seconds())
		return apperrors.Request(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.metrics.RecordAPIRequest(ctx, method, path, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return apperrors.Request(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("API request failed", "op", op, "status", resp.StatusCode)
		return apperrors.Transport(op, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Decode(path, err)
	}
	return nil
}
