package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/orders"
)

// CartClient fetches a cart's lines from the cart service. The order service
// never stores items itself; a checked-out cart remains the system of record
// for what was bought.
type CartClient struct {
	consul *consulapi.Client
	http   *http.Client
}

func NewCartClient(consulClient *consulapi.Client) *CartClient {
	return &CartClient{
		consul: consulClient,
		http:   newHTTPClient(),
	}
}

func (c *CartClient) ItemsByCartID(ctx context.Context, cartID string) ([]orders.Item, error) {
	reqURL, err := serviceURL(c.consul, "cart", "/cart/internal/"+url.PathEscape(cartID)+"/items")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching items of cart %s: %w", cartID, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := decodeEnvelope(resp.Body, &env); err != nil {
		return nil, err
	}

	var items []orders.Item
	if err := decodeData(env.Data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
