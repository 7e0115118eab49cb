// Package billing creates Stripe Checkout and customer-portal sessions.
// Stripe's API is form-encoded, so requests go out as url.Values rather
// than JSON.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mindclone/mindclone/internal/config"
	"github.com/mindclone/mindclone/internal/database"
)

const stripeBaseURL = "https://api.stripe.com"

// Client calls the Stripe API with the account's secret key.
type Client struct {
	secretKey string
	baseURL   string
	cfg       config.Billing
	client    *http.Client
}

// NewClient creates a Stripe client, reading the secret key from the
// environment variable named in the config.
func NewClient(cfg config.Billing) *Client {
	return &Client{
		secretKey: os.Getenv(cfg.SecretKeyEnv),
		baseURL:   stripeBaseURL,
		cfg:       cfg,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether a secret key is available.
func (c *Client) IsConfigured() bool {
	return c.secretKey != ""
}

// CheckoutSession is what the frontend needs to redirect to payment.
// Customer is empty for first-time buyers; Stripe only assigns one once
// a customer record exists.
type CheckoutSession struct {
	ID       string
	URL      string
	Customer string
}

// CreateCheckoutSession starts a subscription checkout for the user. The
// user ID rides along as client_reference_id so the account can be
// matched up after payment.
func (c *Client) CreateCheckoutSession(ctx context.Context, user *database.User) (*CheckoutSession, error) {
	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("line_items[0][price]", c.cfg.PriceID)
	params.Set("line_items[0][quantity]", "1")
	params.Set("client_reference_id", strconv.FormatInt(user.ID, 10))
	params.Set("success_url", c.cfg.SuccessURL)
	params.Set("cancel_url", c.cfg.CancelURL)

	// Stripe rejects requests carrying both a customer and an email.
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		params.Set("customer", *user.StripeCustomerID)
	} else if user.Email != nil && *user.Email != "" {
		params.Set("customer_email", *user.Email)
	}

	var session struct {
		ID       string `json:"id"`
		URL      string `json:"url"`
		Customer string `json:"customer"`
	}
	if err := c.post(ctx, "/v1/checkout/sessions", params, &session); err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL, Customer: session.Customer}, nil
}

// CreatePortalSession opens the customer portal for managing an existing
// subscription and returns its URL.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", errors.New("no billing account for user")
	}

	params := url.Values{}
	params.Set("customer", customerID)
	if c.cfg.PortalReturn != "" {
		params.Set("return_url", c.cfg.PortalReturn)
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/billing_portal/sessions", params, &session); err != nil {
		return "", err
	}
	return session.URL, nil
}

func (c *Client) post(ctx context.Context, path string, params url.Values, out any) error {
	if c.secretKey == "" {
		return errors.New("stripe secret key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe API returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe API returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding stripe response: %w", err)
	}
	return nil
}
