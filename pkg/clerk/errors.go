// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

package clerk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/guidepost-hq/guidepost/pkg/networking"
)

// APIError is a structured error parsed from the backend API's error
// envelope. Only envelope fields are surfaced; the raw response body is
// discarded.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Code is the machine-readable error code, e.g. "resource_not_found".
	Code string

	// Message is the envelope's short human-readable message.
	Message string

	// TraceID identifies the request in Clerk's own logs. Worth quoting in
	// support tickets.
	TraceID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("clerk api error (status %d, code %q): %s", e.StatusCode, e.Code, e.Message)
	if e.TraceID != "" {
		msg = fmt.Sprintf("%s (trace %s)", msg, e.TraceID)
	}
	return msg
}

// parseAPIError converts an error response into an *APIError. It returns nil
// when the body is not the expected envelope, in which case the fetch layer
// falls back to its generic HTTP error.
func parseAPIError(resp *http.Response, body []byte) error {
	var envelope struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
		TraceID string `json:"clerk_trace_id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       envelope.Errors[0].Code,
		Message:    envelope.Errors[0].Message,
		TraceID:    envelope.TraceID,
	}
}

// IsNotFound reports whether the error is the API's 404 response, parsed or
// not.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return networking.IsHTTPError(err, http.StatusNotFound)
}
