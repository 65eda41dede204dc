package authority

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

// Client is the HTTP implementation of Registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type infoResponse struct {
	PublicKey    string   `json:"public_key"`
	AllowedTypes []string `json:"allowed_types"`
	Status       string   `json:"status"`
}

func (c *Client) GetAuthorityInfo(ctx context.Context, issuer domain.Identity) (Info, error) {
	var body infoResponse
	if err := c.get(ctx, "/authorities/"+url.PathEscape(issuer.String()), &body); err != nil {
		return Info{}, err
	}
	key, err := decodeKey(body.PublicKey)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Identity:     issuer,
		PublicKey:    key,
		AllowedTypes: body.AllowedTypes,
		Status:       Status(body.Status),
	}, nil
}

func (c *Client) IsActive(ctx context.Context, issuer domain.Identity) (bool, error) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.get(ctx, "/authorities/"+url.PathEscape(issuer.String())+"/active", &body); err != nil {
		return false, err
	}
	return body.Active, nil
}

func (c *Client) IsAllowedType(ctx context.Context, issuer domain.Identity, achievementType string) (bool, error) {
	var body struct {
		Allowed bool `json:"allowed"`
	}
	path := "/authorities/" + url.PathEscape(issuer.String()) + "/allowed-types/" + url.PathEscape(achievementType)
	if err := c.get(ctx, path, &body); err != nil {
		return false, err
	}
	return body.Allowed, nil
}

func (c *Client) PublicKey(ctx context.Context, issuer domain.Identity) (ed25519.PublicKey, error) {
	var body struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.get(ctx, "/authorities/"+url.PathEscape(issuer.String())+"/key", &body); err != nil {
		return nil, err
	}
	return decodeKey(body.PublicKey)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build authority request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternalService, "authority registry unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "authority not found in registry")
	case resp.StatusCode != http.StatusOK:
		return dErrors.New(dErrors.CodeExternalService,
			fmt.Sprintf("authority registry returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternalService, "decode authority response")
	}
	return nil
}

func decodeKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalService, "authority public key is not valid hex")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, dErrors.New(dErrors.CodeExternalService, "authority public key must be 32 bytes")
	}
	return ed25519.PublicKey(raw), nil
}
