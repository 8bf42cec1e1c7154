// utils/chain.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// RelayerClient submits mint requests to the signing relayer service. The
// relayer owns keys, gas and ABI encoding; this side only exchanges the job
// payload for a transaction hash.
type RelayerClient struct {
	BaseURL    string
	Token      string
	Contract   string
	HTTPClient *http.Client
}

func NewRelayerClientFromEnv() *RelayerClient {
	return &RelayerClient{
		BaseURL:  os.Getenv("MINT_RELAYER_URL"),
		Token:    os.Getenv("MINT_RELAYER_TOKEN"),
		Contract: os.Getenv("NFT_CONTRACT_ADDRESS"),
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second, // on-chain confirmation can be slow
		},
	}
}

// Configured reports whether the signing/contract configuration is present.
// Without it, jobs are parked as pending_offchain instead of attempted.
func (c *RelayerClient) Configured() bool {
	return c.BaseURL != "" && c.Token != "" && c.Contract != ""
}

func (c *RelayerClient) Mint(ctx context.Context, recipient string, level int, metadataURI string) (string, string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"contract":     c.Contract,
		"recipient":    recipient,
		"level":        level,
		"metadata_uri": metadataURI,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to encode mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/v1/mint", c.BaseURL), bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to call relayer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", "", fmt.Errorf("relayer returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		TxHash  string `json:"tx_hash"`
		TokenID string `json:"token_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", "", fmt.Errorf("failed to decode relayer response: %w", err)
	}
	if response.TxHash == "" {
		return "", "", fmt.Errorf("relayer returned empty tx hash")
	}

	return response.TxHash, response.TokenID, nil
}
