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
	"errors"
	"fmt"
	"net/url"
)

// HTTPError is a non-200 response from an upstream service, reduced to what
// is safe to log and act on.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the HTTP status text. Response bodies are never carried
	// here; upstream error payloads stay out of this service's errors and
	// logs.
	Message string

	// URL is the requested URL with query and fragment stripped. Identity
	// provider URLs embed user IDs in the path, which callers already log;
	// query parameters are dropped so nothing else rides along.
	URL string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error for the given request URL.
func NewHTTPError(statusCode int, requestURL, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        sanitizeURL(requestURL),
		Message:    message,
	}
}

// IsHTTPError checks if an error is an HTTPError with the specified status code.
// If statusCode is 0, it matches any HTTPError.
func IsHTTPError(err error, statusCode int) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if statusCode == 0 {
		return true
	}
	return httpErr.StatusCode == statusCode
}

// sanitizeURL strips the query and fragment from a URL. Unparseable input
// is returned as-is; it cannot carry a query worth hiding.
func sanitizeURL(requestURL string) string {
	parsed, err := url.Parse(requestURL)
	if err != nil {
		return requestURL
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
