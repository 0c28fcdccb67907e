// SPDX-FileCopyrightText: Copyright 2025 Guidepost, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clerk is a minimal client for the Clerk backend API, covering the
// user and organization-membership reads the auth pipeline depends on.
package clerk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/guidepost-hq/guidepost/pkg/networking"
)

const (
	// DefaultBaseURL is the Clerk backend API endpoint.
	DefaultBaseURL = "https://api.clerk.com"

	// requestTimeout bounds each backend API call. Identity lookups sit on
	// the request path, so they get a tighter budget than the package-wide
	// networking default.
	requestTimeout = 10 * time.Second

	// maxMemberships caps the membership listing. Users belong to a handful
	// of organizations; one page is enough.
	maxMemberships = 100

	rolePrefix = "org:"
)

// Client talks to the Clerk backend API, authenticating every request with
// the instance secret key.
type Client struct {
	baseURL    string
	base       *http.Client
	httpClient networking.HTTPClient
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint. Used by tests
// and proxy deployments.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client. The secret key is still
// attached to every request via the oauth2 transport wrapping.
func WithHTTPClient(base *http.Client) Option {
	return func(c *Client) {
		c.base = base
	}
}

// New builds a Client for the given secret key.
func New(secretKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("secret key is required")
	}

	c := &Client{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}

	base := c.base
	if base == nil {
		built, err := networking.NewClientBuilder().
			WithTimeout(requestTimeout).
			Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build http client: %w", err)
		}
		base = built
	}

	c.httpClient = &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: secretKey,
				TokenType:   "Bearer",
			}),
			Base: base.Transport,
		},
		Timeout: base.Timeout,
	}

	return c, nil
}

// User fetches a single user record.
func (c *Client) User(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	requestURL := fmt.Sprintf("%s/v1/users/%s", c.baseURL, url.PathEscape(userID))
	user, err := networking.FetchJSON[User](ctx, c.httpClient, requestURL,
		networking.WithErrorHandler(parseAPIError))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}

	return &user, nil
}

// OrganizationMemberships lists the organizations the user belongs to,
// with each membership's role stripped of the wire "org:" prefix.
func (c *Client) OrganizationMemberships(ctx context.Context, userID string) ([]OrganizationMembership, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	requestURL := fmt.Sprintf(
		"%s/v1/users/%s/organization_memberships?limit=%d",
		c.baseURL, url.PathEscape(userID), maxMemberships,
	)
	list, err := networking.FetchJSON[membershipList](ctx, c.httpClient, requestURL,
		networking.WithErrorHandler(parseAPIError))
	if err != nil {
		return nil, fmt.Errorf("failed to list organization memberships for %s: %w", userID, err)
	}

	memberships := list.Data
	for i := range memberships {
		memberships[i].Role = strings.TrimPrefix(memberships[i].Role, rolePrefix)
	}

	return memberships, nil
}
