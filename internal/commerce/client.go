package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ordermesh/tokengate/internal/logging"
	"github.com/ordermesh/tokengate/internal/rotation"
)

// Client talks to the external commerce API. Every call reads the current
// access token from the credential store, so in-flight requests pick up
// rotated tokens without coordination.
type Client struct {
	baseURL  string
	provider string
	store    *rotation.Store
	http     *http.Client
	limiter  *rate.Limiter
	logger   *logging.Logger
}

// NewClient creates a commerce client. The rate limiter bounds outbound
// pressure on the upstream API across all jobs and handlers.
func NewClient(baseURL, provider string, store *rotation.Store, limit rate.Limit, burst int, logger *logging.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		provider: provider,
		store:    store,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
}

// SetHTTPClient overrides the underlying HTTP client. Used in tests.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.http = h
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	token, _ := c.store.AccessToken(c.provider)
	req.Header.Set("Authorization", "Bearer "+token)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("commerce %s %s -> %d", method, path, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamFailure(respBody, resp.StatusCode)
	}
	return respBody, nil
}

// GetAllOrders fetches every order visible to the account.
func (c *Client) GetAllOrders(ctx context.Context, accountID, params string) ([]Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/getAllOrders", map[string]string{
		"accountid": accountID,
		"params":    params,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	var parsed ordersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode orders response: %w", err)
	}
	return parsed.Orders, nil
}

// GetProducts looks up catalog entries by product name, one name per call.
func (c *Client) GetProducts(ctx context.Context, accountID, productName string) ([]Product, error) {
	params := "?pageSize=1&language=DE&filter.name=" + url.QueryEscape(productName)
	body, err := c.do(ctx, http.MethodGet, "/getProducts", map[string]string{
		"accountid": accountID,
		"params":    params,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch products for %q: %w", productName, err)
	}
	var parsed productsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode products response: %w", err)
	}
	return parsed.Products, nil
}

// UpdateOrder sends one batched order mutation. A non-success status
// surfaces the upstream message as the failure reason.
func (c *Client) UpdateOrder(ctx context.Context, accountID, customerID string, items []UpdateItem) (map[string]interface{}, error) {
	payload, err := json.Marshal(map[string]interface{}{"orderItems": items})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/addOrder", map[string]string{
		"accountid":  accountID,
		"customerid": customerID,
	}, payload)
	if err != nil {
		return nil, fmt.Errorf("order update failed: %w", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode order update response: %w", err)
	}
	return result, nil
}

// upstreamFailure extracts the error message the commerce API attaches to
// failed calls.
func upstreamFailure(body []byte, status int) error {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return fmt.Errorf("%s", parsed.Message)
	}
	return fmt.Errorf("upstream returned HTTP %d", status)
}
