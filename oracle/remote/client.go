// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/gavel/governance"
)

const DefaultClientTimeout = 30 * time.Second

// Client talks to a remote oracle service and implements both
// governance.MembershipOracle and governance.PurchaseOracle
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ governance.MembershipOracle = (*Client)(nil)
	_ governance.PurchaseOracle   = (*Client)(nil)
)

type ClientOptionFunc func(*Client)

// WithHTTPClient specifies the HTTP client used for requests
func WithHTTPClient(httpClient *http.Client) ClientOptionFunc {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithClientLogger specifies the logger object to use for logging messages
func WithClientLogger(logger *slog.Logger) ClientOptionFunc {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, opts ...ClientOptionFunc) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse oracle URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported oracle URL scheme: %q", u.Scheme)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultClientTimeout}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "oracle")
	return c, nil
}

// statusError is returned for responses the protocol does not define
type statusError struct {
	Message    string
	StatusCode int
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("oracle returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("oracle returned status %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	dest any,
) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return resp.StatusCode, &statusError{
			StatusCode: resp.StatusCode,
			Message:    errResp.Message,
		}
	}
	if dest != nil {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return resp.StatusCode, fmt.Errorf("decode oracle response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) member(
	ctx context.Context,
	addr governance.Address,
) (*MemberResponse, error) {
	var resp MemberResponse
	path := membersPath + url.PathEscape(string(addr))
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) OwnsAny(
	ctx context.Context,
	addr governance.Address,
) (bool, error) {
	resp, err := c.member(ctx, addr)
	if err != nil {
		return false, err
	}
	return resp.OwnsAny, nil
}

func (c *Client) BalanceOf(
	ctx context.Context,
	addr governance.Address,
) (uint64, error) {
	resp, err := c.member(ctx, addr)
	if err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *Client) TokensOwnedBy(
	ctx context.Context,
	addr governance.Address,
) ([]governance.TokenID, error) {
	resp, err := c.member(ctx, addr)
	if err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

func (c *Client) asset(
	ctx context.Context,
	asset governance.AssetID,
) (*AssetResponse, error) {
	var resp AssetResponse
	path := assetsPath + strconv.FormatUint(uint64(asset), 10)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) IsAvailable(
	ctx context.Context,
	asset governance.AssetID,
) (bool, error) {
	resp, err := c.asset(ctx, asset)
	if err != nil {
		return false, err
	}
	return resp.Available, nil
}

func (c *Client) GetPrice(
	ctx context.Context,
	asset governance.AssetID,
) (*big.Int, error) {
	resp, err := c.asset(ctx, asset)
	if err != nil {
		return nil, err
	}
	if !resp.Available {
		return nil, fmt.Errorf("%w: %d", governance.ErrAssetUnavailable, asset)
	}
	return parseAmount(resp.Price)
}

func (c *Client) Purchase(
	ctx context.Context,
	asset governance.AssetID,
	amount *big.Int,
) error {
	if amount == nil {
		return errors.New("purchase amount is required")
	}
	path := assetsPath + strconv.FormatUint(uint64(asset), 10) + "/purchase"
	status, err := c.do(
		ctx,
		http.MethodPost,
		path,
		PurchaseRequest{Amount: amount.String()},
		nil,
	)
	switch status {
	case http.StatusGone:
		return fmt.Errorf("%w: %d", governance.ErrAssetUnavailable, asset)
	case http.StatusConflict:
		return fmt.Errorf("%w: %v", governance.ErrPriceChanged, err)
	}
	if err != nil {
		return err
	}
	c.logger.Debug(
		"remote purchase completed",
		"asset_id", uint64(asset),
		"amount", amount.String(),
	)
	return nil
}
