// Copyright 2025 Guidepost, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package networking

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultMaxResponseSize caps how much of a response body FetchJSON
	// reads (1MB). JWKS documents and identity-provider records are far
	// smaller; anything bigger is a misbehaving upstream.
	DefaultMaxResponseSize = 1024 * 1024

	// ContentTypeJSON is the JSON content type.
	ContentTypeJSON = "application/json"
)

// FetchOption adjusts a single FetchJSON call.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	maxResponseSize     int64
	validateContentType bool
	errorHandler        func(*http.Response, []byte) error
}

// WithMaxResponseSize overrides the response body read cap.
func WithMaxResponseSize(size int64) FetchOption {
	return func(cfg *fetchConfig) {
		cfg.maxResponseSize = size
	}
}

// WithoutContentTypeValidation accepts responses whose Content-Type is not
// application/json. Some identity providers serve key sets as
// application/jwk-set+json.
func WithoutContentTypeValidation() FetchOption {
	return func(cfg *fetchConfig) {
		cfg.validateContentType = false
	}
}

// WithErrorHandler installs a parser for structured error responses. The
// handler receives the response and its body; returning nil falls back to
// the generic HTTPError.
func WithErrorHandler(handler func(*http.Response, []byte) error) FetchOption {
	return func(cfg *fetchConfig) {
		cfg.errorHandler = handler
	}
}

// FetchJSON issues a GET to requestURL and decodes the JSON response body
// into T. Every read the auth pipeline performs, key sets and
// identity-provider lookups alike, goes through here.
//
// The body is read through a size cap, and non-200 responses surface as an
// HTTPError carrying the status text only, never the body.
func FetchJSON[T any](
	ctx context.Context,
	client HTTPClient,
	requestURL string,
	opts ...FetchOption,
) (T, error) {
	var zero T

	cfg := &fetchConfig{
		maxResponseSize:     DefaultMaxResponseSize,
		validateContentType: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeJSON)

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read one byte past the cap so an oversized body is distinguishable
	// from one that fits exactly.
	body, err := io.ReadAll(io.LimitReader(resp.Body, cfg.maxResponseSize+1))
	if err != nil {
		return zero, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if cfg.errorHandler != nil {
			if handled := cfg.errorHandler(resp, body); handled != nil {
				return zero, handled
			}
		}

		statusText := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return zero, NewHTTPError(resp.StatusCode, requestURL, statusText)
	}

	if int64(len(body)) > cfg.maxResponseSize {
		return zero, fmt.Errorf("response body exceeds %d bytes", cfg.maxResponseSize)
	}

	if cfg.validateContentType {
		contentType := resp.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(contentType), ContentTypeJSON) {
			return zero, fmt.Errorf("unexpected content type: %s", contentType)
		}
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		return zero, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return data, nil
}
