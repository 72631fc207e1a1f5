// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package market fetches token prices, token icons and NFT metadata from
// public HTTP APIs. Lookups are best effort: a failed price or icon lookup
// degrades to a zero value rather than failing the wallet operation.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/inconshreveable/log15"
)

const (
	DefaultRateEndpoint      = "https://api-cloud.bitmart.com/spot/v1/ticker_detail"
	DefaultL1XTokenEndpoint  = "https://v2-api.l1xapp.com/api/v2/l1x_token/coins/contract/"
	DefaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/coins/"
	DefaultIPFSGateway       = "https://ipfs.io/"

	defaultTimeout = 10 * time.Second
)

type Config struct {
	RateEndpoint      string
	L1XTokenEndpoint  string
	CoinGeckoEndpoint string
	IPFSGateway       string
	Timeout           time.Duration
}

func DefaultConfig() Config {
	return Config{
		RateEndpoint:      DefaultRateEndpoint,
		L1XTokenEndpoint:  DefaultL1XTokenEndpoint,
		CoinGeckoEndpoint: DefaultCoinGeckoEndpoint,
		IPFSGateway:       DefaultIPFSGateway,
		Timeout:           defaultTimeout,
	}
}

// NFTMetadata is the subset of an ERC-721 style metadata document the
// wallet displays.
type NFTMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Icon        string `json:"icon"`
}

type Client struct {
	cfg  Config
	http *http.Client
	log  log.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.New("module", "market"),
	}
}

// TokenRate is the last USD price of symbol, or 0 if unknown. USDT is
// priced through USDC since the exchange quotes in USDT.
func (c *Client) TokenRate(ctx context.Context, symbol string) float64 {
	if strings.EqualFold(symbol, "USDT") {
		symbol = "USDC"
	}
	var reply struct {
		Data struct {
			LastPrice string `json:"last_price"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s?symbol=%s_USDT", c.cfg.RateEndpoint, url.QueryEscape(strings.ToUpper(symbol)))
	if err := c.getJSON(ctx, u, &reply); err != nil {
		c.log.Debug("rate lookup failed", "symbol", symbol, "err", err)
		return 0
	}
	rate, err := strconv.ParseFloat(reply.Data.LastPrice, 64)
	if err != nil {
		return 0
	}
	return rate
}

// L1XTokenImage is the icon registered for an L1X token contract.
func (c *Client) L1XTokenImage(ctx context.Context, address string) string {
	var reply struct {
		Data struct {
			Image string `json:"image"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, c.cfg.L1XTokenEndpoint+addPrefix(address), &reply); err != nil {
		c.log.Debug("token image lookup failed", "address", address, "err", err)
		return ""
	}
	return reply.Data.Image
}

// EVMTokenImage is the icon CoinGecko lists for a contract on platform.
func (c *Client) EVMTokenImage(ctx context.Context, platform, address string) string {
	var reply struct {
		Image struct {
			Small string `json:"small"`
			Thumb string `json:"thumb"`
		} `json:"image"`
	}
	u := fmt.Sprintf("%s%s/contract/%s", c.cfg.CoinGeckoEndpoint, strings.ToLower(platform), addPrefix(address))
	if err := c.getJSON(ctx, u, &reply); err != nil {
		c.log.Debug("token image lookup failed", "address", address, "err", err)
		return ""
	}
	if reply.Image.Small != "" {
		return reply.Image.Small
	}
	return reply.Image.Thumb
}

// NFTMetadata fetches the document at uri, resolving ipfs:// links through
// the configured gateway.
func (c *Client) NFTMetadata(ctx context.Context, uri string) (*NFTMetadata, error) {
	meta := &NFTMetadata{}
	if err := c.getJSON(ctx, c.FilterIPFS(uri), meta); err != nil {
		return nil, err
	}
	if meta.Icon == "" {
		meta.Icon = c.FilterIPFS(meta.Image)
	}
	return meta, nil
}

// FilterIPFS rewrites an ipfs://CID link to an HTTP gateway URL. HTTP links
// pass through.
func (c *Client) FilterIPFS(uri string) string {
	switch {
	case uri == "":
		return ""
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri
	default:
		return c.cfg.IPFSGateway + strings.Replace(uri, "://", "/", 1)
	}
}

func (c *Client) getJSON(ctx context.Context, u string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func addPrefix(address string) string {
	if strings.HasPrefix(address, "0x") {
		return address
	}
	return "0x" + address
}
