package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	consulapi "github.com/hashicorp/consul/api"
)

// UserClient resolves notification email addresses from the user service.
type UserClient struct {
	consul *consulapi.Client
	http   *http.Client
	token  string
}

func NewUserClient(consulClient *consulapi.Client, token string) *UserClient {
	return &UserClient{
		consul: consulClient,
		http:   newHTTPClient(),
		token:  token,
	}
}

func (u *UserClient) EmailByID(ctx context.Context, userID string) (string, error) {
	reqURL, err := serviceURL(u.consul, "users", "/users/"+url.PathEscape(userID)+"/email")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching email of user %s: %w", userID, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := decodeEnvelope(resp.Body, &env); err != nil {
		return "", err
	}

	var email string
	if err := decodeData(env.Data, &email); err != nil {
		return "", err
	}
	return email, nil
}
