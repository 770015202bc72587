package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/cart"
)

// ProductClient talks to the product service: stock/price snapshots for the
// cart flow, the atomic stock mutation for the order pipeline, and name
// lookups for event enrichment.
type ProductClient struct {
	consul *consulapi.Client
	http   *http.Client
	token  string
}

// NewProductClient builds the client. token is the service bearer token used
// for the authenticated stock mutation endpoint.
func NewProductClient(consulClient *consulapi.Client, token string) *ProductClient {
	return &ProductClient{
		consul: consulClient,
		http:   newHTTPClient(),
		token:  token,
	}
}

// ProductByID fetches the stock and price snapshot. A 404 maps to
// cart.ErrProductNotFound so the cart service can surface it directly.
func (p *ProductClient) ProductByID(ctx context.Context, productID string) (cart.ProductInfo, error) {
	reqURL, err := serviceURL(p.consul, "products", "/products/stock/"+url.PathEscape(productID))
	if err != nil {
		return cart.ProductInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return cart.ProductInfo{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return cart.ProductInfo{}, fmt.Errorf("fetching product %s: %w", productID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return cart.ProductInfo{}, cart.ErrProductNotFound
	default:
		return cart.ProductInfo{}, fmt.Errorf("product service returned status %d", resp.StatusCode)
	}

	var info cart.ProductInfo
	if err := decodeJSON(resp.Body, &info); err != nil {
		return cart.ProductInfo{}, err
	}
	return info, nil
}

// SetStock applies one increase or decrease to the product's stock ledger.
// A failure envelope's message key (e.g. "product.insufficient_stock")
// becomes the error text.
func (p *ProductClient) SetStock(ctx context.Context, productID string, quantity int, action string) error {
	path := fmt.Sprintf("/products/stock/%s?quantity=%s&action=%s",
		url.PathEscape(productID), strconv.Itoa(quantity), url.QueryEscape(action))
	reqURL, err := serviceURL(p.consul, "products", path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("adjusting stock for product %s: %w", productID, err)
	}
	defer resp.Body.Close()

	var env envelope
	return decodeEnvelope(resp.Body, &env)
}

// NameByID resolves a product's display name.
func (p *ProductClient) NameByID(ctx context.Context, productID string) (string, error) {
	reqURL, err := serviceURL(p.consul, "products", "/products/name/"+url.PathEscape(productID))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching name of product %s: %w", productID, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := decodeEnvelope(resp.Body, &env); err != nil {
		return "", err
	}

	var name string
	if err := decodeData(env.Data, &name); err != nil {
		return "", err
	}
	return name, nil
}
