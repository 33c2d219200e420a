package model

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

const maxBodyBytes = 4 << 20

// NewHTTPClient returns a client with the backend's fixed timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// WithTimeout bounds ctx by d. A zero d leaves ctx unbounded.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Endpoint identifies a backend in the errors Do returns.
type Endpoint struct {
	Provider string
	Label    string
}

// Fail builds a ProviderError for this endpoint.
func (e Endpoint) Fail(kind FailureKind, err error) *ProviderError {
	return Fail(e.Provider, e.Label, kind, err)
}

// PostJSON marshals body, POSTs it to url and returns the response body.
func (e Endpoint) PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, e.Fail(FailureUnparseable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, e.Fail(FailureNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return e.Do(client, req)
}

// Get issues a GET to url and returns the response body.
func (e Endpoint) Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, e.Fail(FailureNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	return e.Do(client, req)
}

// Do sends req. Transport errors become FailureNetwork, non-2xx
// statuses become FailureHTTP.
func (e Endpoint) Do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, e.Fail(FailureNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, e.Fail(FailureNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, HTTPFail(e.Provider, e.Label, resp.StatusCode, string(body))
	}
	return body, nil
}

// Decode unmarshals a response body into v.
func (e Endpoint) Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return e.Fail(FailureUnparseable, err)
	}
	return nil
}
