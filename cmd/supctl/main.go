/**
 * @description
 * Operator script for the SUP treasury. It calls the admin API to print the
 * treasury overview, set or lift the emergency freeze and resolve alerts.
 *
 * Usage:
 *   go run ./cmd/supctl overview
 *   go run ./cmd/supctl freeze "<reason>"
 *   go run ./cmd/supctl unfreeze "<reason>"
 *   go run ./cmd/supctl resolve <alert-id> "<note>"
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files.
 * - Environment variables: SUP_API_URL, SUP_ADMIN_TOKEN
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// APIError is the error body returned by the ledger API.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Overview is the subset of the treasury snapshot printed by the script.
type Overview struct {
	TotalPoolSUP          string            `json:"total_pool_sup"`
	PrizePoolSUP          string            `json:"prize_pool_sup"`
	TotalEscrowNGN        string            `json:"total_escrow_ngn"`
	ReserveRatio          *string           `json:"reserve_ratio"`
	Healthy               bool              `json:"healthy"`
	PendingWithdrawals    int               `json:"pending_withdrawals"`
	PendingWithdrawalsNGN string            `json:"pending_withdrawals_ngn"`
	SubAccounts           map[string]string `json:"sub_accounts"`
	Frozen                bool              `json:"frozen"`
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  supctl overview")
	fmt.Println("  supctl freeze <reason>")
	fmt.Println("  supctl unfreeze <reason>")
	fmt.Println("  supctl resolve <alert-id> <note>")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("SUP_API_URL")), "/")
	token := strings.TrimSpace(os.Getenv("SUP_ADMIN_TOKEN"))
	if token == "" {
		log.Fatal("SUP_ADMIN_TOKEN environment variable is required")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
		fmt.Println("Using default API URL:", baseURL)
	}

	c := &client{baseURL: baseURL, token: token, http: &http.Client{Timeout: 15 * time.Second}}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd := os.Args[1]; cmd {
	case "overview":
		printOverview(ctx, c)

	case "freeze", "unfreeze":
		if len(os.Args) != 3 || strings.TrimSpace(os.Args[2]) == "" {
			usage()
		}
		printOverview(ctx, c)
		path, done := "/treasury/emergency-freeze", "Treasury frozen."
		if cmd == "unfreeze" {
			path, done = "/treasury/lift-freeze", "Treasury freeze lifted."
		}
		if !confirm(fmt.Sprintf("Are you sure you want to %s the treasury?", cmd)) {
			fmt.Println("Cancelled.")
			os.Exit(0)
		}
		if err := c.post(ctx, path, map[string]string{"reason": os.Args[2]}, nil); err != nil {
			log.Fatalf("Failed to %s treasury: %v", cmd, err)
		}
		fmt.Println(done)

	case "resolve":
		if len(os.Args) != 4 {
			usage()
		}
		alertID, err := uuid.Parse(os.Args[2])
		if err != nil {
			log.Fatalf("Invalid alert id %q: %v", os.Args[2], err)
		}
		if !confirm(fmt.Sprintf("Resolve alert %s?", alertID)) {
			fmt.Println("Cancelled.")
			os.Exit(0)
		}
		var alert struct {
			Type     string `json:"type"`
			Severity string `json:"severity"`
		}
		if err := c.post(ctx, fmt.Sprintf("/treasury/alerts/%s/resolve", alertID), map[string]string{"note": os.Args[3]}, &alert); err != nil {
			log.Fatalf("Failed to resolve alert: %v", err)
		}
		fmt.Printf("Resolved %s alert %s (%s).\n", alert.Severity, alertID, alert.Type)

	default:
		usage()
	}
}

func confirm(question string) bool {
	fmt.Printf("\n%s (yes/no): ", question)
	var answer string
	fmt.Scanln(&answer)
	return answer == "yes"
}

func printOverview(ctx context.Context, c *client) {
	var overview Overview
	if err := c.do(ctx, http.MethodGet, "/treasury/overview", nil, &overview); err != nil {
		log.Fatalf("Failed to fetch overview: %v", err)
	}
	ratio := "n/a"
	if overview.ReserveRatio != nil {
		ratio = *overview.ReserveRatio
	}
	fmt.Printf("Treasury:\n")
	fmt.Printf("  SUP in circulation: %s\n", overview.TotalPoolSUP)
	fmt.Printf("  Open prize pools:   %s SUP\n", overview.PrizePoolSUP)
	fmt.Printf("  NGN in escrow:      %s\n", overview.TotalEscrowNGN)
	fmt.Printf("  Reserve ratio:      %s (healthy: %t)\n", ratio, overview.Healthy)
	fmt.Printf("  Pending cashouts:   %d (%s NGN)\n", overview.PendingWithdrawals, overview.PendingWithdrawalsNGN)
	fmt.Printf("  Frozen:             %t\n", overview.Frozen)
	for name, balance := range overview.SubAccounts {
		fmt.Printf("  %-19s %s SUP\n", name+":", balance)
	}
}

func (c *client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr APIError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("api error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api error with status %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
