/**
 * @description
 * Client for the KYC service. The ledger asks for an account's verification
 * tier on every limit check and never caches the answer.
 */
package kycclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

// Client is a client for the KYC service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new KYC service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// TierResponse is the body of GET /internal/kyc/{accountID}.
type TierResponse struct {
	Tier string `json:"tier"`
}

// Tier returns the current verification tier of accountID.
func (c *Client) Tier(ctx context.Context, accountID uuid.UUID) (domain.KYCTier, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("kyc service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/kyc/%s", c.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request to kyc service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.KYCTierNone, nil
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("kyc service returned error status %d", resp.StatusCode)
	}

	var body TierResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return domain.ParseKYCTier(body.Tier), nil
}
