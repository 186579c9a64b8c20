// Package indexer fetches NFT references from the indexer API.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/nft-enricher/internal/nft"
)

var ErrNotFound = errors.New("nft not found")

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// GetNft returns the on-chain reference for identifier.
func (c *Client) GetNft(ctx context.Context, identifier string) (*nft.Nft, error) {
	endpoint := c.baseURL + "/nfts/" + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get nft %s: %w", identifier, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get nft %s: unexpected status %d", identifier, resp.StatusCode)
	}

	var n nft.Nft
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode nft %s: %w", identifier, err)
	}
	if n.Identifier == "" {
		n.Identifier = identifier
	}
	// Enrichment fields are owned by the worker, never by the indexer.
	n.Metadata = nil
	n.Media = nil
	return &n, nil
}
