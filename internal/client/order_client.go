// internal/client/order_client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/config"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/service"
)

// OrderClient talks to the order service over HTTP/JSON.
type OrderClient struct {
	baseURL string
	http    *http.Client
}

func NewOrderClient(cfg config.OrdersConfig) *OrderClient {
	return &OrderClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *OrderClient) FindByID(ctx context.Context, orderID string) (*service.Order, error) {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s", c.baseURL, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	var order service.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return &order, nil
}

func (c *OrderClient) UpdatePaymentStatus(ctx context.Context, orderID, status, reference string) error {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s/payment-status", c.baseURL, url.PathEscape(orderID))

	body, err := json.Marshal(map[string]string{
		"payment_status":    status,
		"payment_reference": reference,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("order status update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("order service returned status %d", resp.StatusCode)
	}
	return nil
}
