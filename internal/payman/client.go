package payman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultBaseURL is the production Payman agent endpoint.
const DefaultBaseURL = "https://agent.payman.ai"

// currency used on the test rails.
const currency = "TSD"

type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // defaults to DefaultBaseURL; overridable for tests
}

// Client talks to the Payman agent API. The remote side accepts free-text
// instructions and parses intent itself, so the wire format is a single
// "ask" call; the typed methods below are the only place those instruction
// strings are built.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client authenticated with the OAuth2 client-credentials
// flow. Construct it once per process and share it.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	oauth := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/oauth2/token",
	}

	httpClient := oauth.Client(context.Background())
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
	}
}

type askRequest struct {
	Message string `json:"message"`
}

// Ask sends one free-text instruction to the agent and returns the raw
// response body. The response carries no schema guarantees; callers treat
// it as opaque text.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(askRequest{Message: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agents/ask", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payman ask: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("payman ask: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("payman ask: status %d: %s", resp.StatusCode, respBody)
	}

	return string(respBody), nil
}

// CreatePayee registers a vendor-identity record on the test rails. Done at
// most once per distinct item name.
func (c *Client) CreatePayee(ctx context.Context, name string) error {
	_, err := c.Ask(ctx, fmt.Sprintf("create %s type test rails", name))
	return err
}

// SendPayment moves amount (already rounded to two decimals by the caller)
// from wallet to the named payee.
func (c *Client) SendPayment(ctx context.Context, amount decimal.Decimal, payee, wallet string) error {
	prompt := fmt.Sprintf("send %s %s to %s type test rails from %s",
		amount.StringFixed(2), currency, payee, wallet)
	_, err := c.Ask(ctx, prompt)
	return err
}
