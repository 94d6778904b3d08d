package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FreightFox/FreightFox/app/models"
	"github.com/FreightFox/FreightFox/internal/pkg/env"
)

// Client talks to the marketplace REST API on behalf of the carrier.
// Token refresh and retry policy live in the injected HTTP client; the
// engine treats a timed-out call like any other rejection.
type Client struct {
	BaseURL string
	Token   string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from MARKETPLACE_* environment keys.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: strings.TrimRight(env.GetEnv("MARKETPLACE_API_URL", "http://localhost:8080"), "/"),
		Token:   strings.TrimSpace(env.GetEnv("MARKETPLACE_API_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateBid submits a new bid and returns the server record.
func (c *Client) CreateBid(ctx context.Context, in CreateBidRequest) (models.Bid, error) {
	var out models.Bid
	err := c.do(ctx, http.MethodPost, "/bids", in, &out)
	return out, err
}

// UpdateBid edits a pending bid in place.
func (c *Client) UpdateBid(ctx context.Context, bidID string, in UpdateBidRequest) (models.Bid, error) {
	var out models.Bid
	err := c.do(ctx, http.MethodPut, "/bids/"+bidID, in, &out)
	return out, err
}

// AcceptBid transitions a bid to accepted (shipment owner only).
func (c *Client) AcceptBid(ctx context.Context, bidID string) (AcceptBidResponse, error) {
	var out AcceptBidResponse
	err := c.do(ctx, http.MethodPost, "/bids/"+bidID+"/accept", nil, &out)
	return out, err
}

// RejectBid transitions a bid to rejected (shipment owner only).
func (c *Client) RejectBid(ctx context.Context, bidID string) (models.Bid, error) {
	var out models.Bid
	err := c.do(ctx, http.MethodPost, "/bids/"+bidID+"/reject", nil, &out)
	return out, err
}

// MyBids lists the carrier's own bids.
func (c *Client) MyBids(ctx context.Context) ([]models.Bid, error) {
	var out []models.Bid
	err := c.do(ctx, http.MethodGet, "/bids/mine", nil, &out)
	return out, err
}

// BidsOnMyShipments lists bids placed on shipments the actor owns.
func (c *Client) BidsOnMyShipments(ctx context.Context) ([]models.Bid, error) {
	var out []models.Bid
	err := c.do(ctx, http.MethodGet, "/bids/on-my-shipments", nil, &out)
	return out, err
}

// AvailableShipments lists open shipments the carrier may bid on.
func (c *Client) AvailableShipments(ctx context.Context) ([]models.Shipment, error) {
	var out []models.Shipment
	err := c.do(ctx, http.MethodGet, "/shipments/available-for-bidding", nil, &out)
	return out, err
}

// MyActiveShipments lists the actor's own active shipments.
func (c *Client) MyActiveShipments(ctx context.Context) ([]models.Shipment, error) {
	var out []models.Shipment
	err := c.do(ctx, http.MethodGet, "/shipments/my-active", nil, &out)
	return out, err
}

// CreateSubscription opens a pending_payment subscription and returns
// the payment reference for the external checkout widget.
func (c *Client) CreateSubscription(ctx context.Context, in CreateSubscriptionRequest) (CreateSubscriptionResponse, error) {
	var out CreateSubscriptionResponse
	err := c.do(ctx, http.MethodPost, "/subscriptions/create", in, &out)
	return out, err
}

// ConfirmSubscription reports a completed payment by its opaque
// reference. The server treats repeated confirmations as idempotent.
func (c *Client) ConfirmSubscription(ctx context.Context, reference string) (models.Subscription, error) {
	var out models.Subscription
	err := c.do(ctx, http.MethodPost, "/subscriptions/confirm", ConfirmSubscriptionRequest{Reference: reference}, &out)
	return out, err
}

// MySubscriptions lists the carrier's subscriptions.
func (c *Client) MySubscriptions(ctx context.Context) ([]models.Subscription, error) {
	var out []models.Subscription
	err := c.do(ctx, http.MethodGet, "/subscriptions/my-subscriptions", nil, &out)
	return out, err
}

// CancelSubscription transitions a subscription to cancelled.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (models.Subscription, error) {
	var out models.Subscription
	err := c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID+"/cancel", nil, &out)
	return out, err
}

// Profile fetches the actor profile carrying the verification state.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &out)
	return out, err
}

// do performs one JSON round-trip and classifies non-2xx responses into
// the rejection taxonomy. Transport failures and timeouts classify as
// transient.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &Error{Kind: KindTransient, Message: "marketplace unreachable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Kind: KindTransient, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return classify(resp.StatusCode, eb)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindUnknown, Message: "failed to decode response", Err: err}
	}
	return nil
}
