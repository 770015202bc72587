// Package clients holds the consul-discovered HTTP clients for the
// collaborator services. Each client resolves a healthy instance per call,
// so a restarted collaborator is picked up without re-wiring.
package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/consul"
)

const requestTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// serviceURL resolves the named service and joins the path onto its address.
func serviceURL(client *consulapi.Client, serviceName, path string) (string, error) {
	address, port, err := consul.GetServiceAddress(client, serviceName)
	if err != nil {
		return "", fmt.Errorf("%s service unavailable: %w", serviceName, err)
	}
	return fmt.Sprintf("http://%s:%d%s", address, port, path), nil
}

// envelope mirrors the api.Response wire shape with the data left raw for
// the caller to decode.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeJSON reads a bare (unenveloped) JSON body.
func decodeJSON(body io.Reader, out any) error {
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeData unpacks the data field of a success envelope.
func decodeData(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return errors.New("empty response data")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// decodeEnvelope reads a response body into the envelope. On a failure
// envelope the message key becomes the error text, so collaborator message
// keys flow through unchanged.
func decodeEnvelope(body io.Reader, out *envelope) error {
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !out.Success {
		if out.Message == "" {
			return errors.New("request failed")
		}
		return errors.New(out.Message)
	}
	return nil
}
