// Package googleauth validates Google Identity Services ID tokens against the
// tokeninfo endpoint.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// Identity is the verified payload of a Google ID token.
type Identity struct {
	GoogleID string
	Email    string
	Name     string
}

// Verifier checks ID tokens for a single OAuth client ID.
type Verifier struct {
	clientID     string
	tokenInfoURL string
	httpClient   *http.Client
}

func NewVerifier(clientID string) (*Verifier, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("google client id required")
	}
	return &Verifier{
		clientID:     clientID,
		tokenInfoURL: defaultTokenInfoURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// SetTokenInfoURL overrides the verification endpoint, used by tests.
func (v *Verifier) SetTokenInfoURL(u string) {
	v.tokenInfoURL = u
}

// Verify validates the token signature (delegated to Google) and audience and
// returns the federated identity.
func (v *Verifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return Identity{}, errors.New("missing google id token")
	}
	endpoint := v.tokenInfoURL + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify google token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("google token rejected: status %d", resp.StatusCode)
	}

	var payload struct {
		Aud       string `json:"aud"`
		Sub       string `json:"sub"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		GivenName string `json:"given_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Identity{}, fmt.Errorf("decode tokeninfo: %w", err)
	}
	if payload.Aud != v.clientID {
		return Identity{}, errors.New("google token audience mismatch")
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || payload.Sub == "" {
		return Identity{}, errors.New("invalid google token payload")
	}
	name := payload.Name
	if name == "" {
		name = payload.GivenName
	}
	if name == "" {
		name = "Google User"
	}
	return Identity{GoogleID: payload.Sub, Email: email, Name: name}, nil
}
