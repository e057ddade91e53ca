// Package directory is the client for the external subscription
// directory service.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/schema"

	"reportrelay/internal/relay/types"
)

// ErrLookup marks a directory lookup failure. Lookup failures are hard
// failures for the whole event: the caller must requeue the message
// instead of scheduling per-subscriber retries.
var ErrLookup = errors.New("subscription lookup failed")

// Resolver resolves the set of subscriptions interested in a report.
type Resolver interface {
	// Resolve returns the audience for a report. A non-nil
	// subscriptionID restricts the result to exactly that subscription.
	Resolve(ctx context.Context, report *types.Report, subscriptionID *int64) ([]*types.Subscription, error)
}

// searchQuery is the query string of GET /subscription.
type searchQuery struct {
	Tags string `schema:"tags"`
}

// searchResults is the body of GET /subscription.
type searchResults struct {
	Count   int                   `json:"count"`
	Results []*types.Subscription `json:"results"`
}

// Client talks to the directory service over HTTP with bearer auth.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	encoder    *schema.Encoder
}

// NewClient creates a directory client. The token is the API key
// obtained from the secrets source at startup.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		encoder:    schema.NewEncoder(),
	}
}

// Resolve implements Resolver.
func (c *Client) Resolve(ctx context.Context, report *types.Report, subscriptionID *int64) ([]*types.Subscription, error) {
	if subscriptionID != nil {
		sub, err := c.getSubscription(ctx, *subscriptionID)
		if err != nil {
			return nil, fmt.Errorf("%w: subscription %d: %v", ErrLookup, *subscriptionID, err)
		}
		return []*types.Subscription{sub}, nil
	}

	subs, err := c.searchSubscriptions(ctx, tagFilter(report))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	return subs, nil
}

// tagFilter builds the comma-joined tag id filter for a report. Order is
// preserved and duplicates are kept; reports without tags fall back to
// the uncategorized tag.
func tagFilter(report *types.Report) string {
	if len(report.Tags) == 0 {
		return strconv.Itoa(types.FallbackTagID)
	}
	ids := make([]string, len(report.Tags))
	for i, t := range report.Tags {
		ids[i] = strconv.FormatInt(t.ID, 10)
	}
	return strings.Join(ids, ",")
}

func (c *Client) getSubscription(ctx context.Context, id int64) (*types.Subscription, error) {
	var sub types.Subscription
	if err := c.get(ctx, fmt.Sprintf("/subscription/%d", id), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) searchSubscriptions(ctx context.Context, tags string) ([]*types.Subscription, error) {
	form := url.Values{}
	if err := c.encoder.Encode(searchQuery{Tags: tags}, form); err != nil {
		return nil, err
	}

	var results searchResults
	if err := c.get(ctx, "/subscription?"+form.Encode(), &results); err != nil {
		return nil, err
	}
	return results.Results, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accepts", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
