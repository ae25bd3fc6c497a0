package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// tokenPath is the OAuth token endpoint under the login URL.
const tokenPath = "/services/oauth2/token"

// PasswordSource implements the resource-owner password grant. The security
// token, when present, is appended to the password as the service requires.
type PasswordSource struct {
	LoginURL      string
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	SecurityToken string
	HTTPClient    *http.Client
}

// Authenticate implements CredentialSource.
func (s *PasswordSource) Authenticate(ctx context.Context) (*sfapi.Session, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"username":      {s.Username},
		"password":      {s.Password + s.SecurityToken},
	}

	return exchange(ctx, s.HTTPClient, s.LoginURL, form)
}

// RefreshTokenSource implements the refresh-token grant.
type RefreshTokenSource struct {
	LoginURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	HTTPClient   *http.Client
}

// Authenticate implements CredentialSource.
func (s *RefreshTokenSource) Authenticate(ctx context.Context) (*sfapi.Session, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"refresh_token": {s.RefreshToken},
	}

	return exchange(ctx, s.HTTPClient, s.LoginURL, form)
}

// StaticSource carries a pre-obtained token. It hands the token out once;
// an expiry-triggered second exchange fails, since a static token cannot be
// renewed.
type StaticSource struct {
	AccessToken string
	InstanceURL string

	mutex sync.Mutex
	used  bool
}

// Authenticate implements CredentialSource.
func (s *StaticSource) Authenticate(context.Context) (*sfapi.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.used {
		return nil, &sfapi.AuthError{Err: sfapi.ErrCannotRefresh}
	}

	s.used = true

	return &sfapi.Session{AccessToken: s.AccessToken, InstanceURL: s.InstanceURL}, nil
}

// exchange POSTs the grant form to the token endpoint and decodes the
// response. Every failure path comes back as an AuthError.
func exchange(ctx context.Context, httpClient *http.Client, loginURL string, form url.Values) (*sfapi.Session, error) {
	if loginURL == "" {
		return nil, &sfapi.AuthError{Err: sfapi.ErrLoginURLRequired}
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := strings.TrimSuffix(loginURL, "/") + tokenPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &sfapi.AuthError{Err: fmt.Errorf("building token request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &sfapi.AuthError{Err: &sfapi.NetworkError{Err: err}}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &sfapi.AuthError{Err: &sfapi.NetworkError{Err: err}}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &sfapi.AuthError{Err: fmt.Errorf("decoding token response (HTTP %d): %w", resp.StatusCode, err)}
	}

	if resp.StatusCode != http.StatusOK || tok.Error != "" {
		return nil, &sfapi.AuthError{
			Err: fmt.Errorf("token endpoint rejected the exchange (HTTP %d): %s: %s",
				resp.StatusCode, tok.Error, tok.ErrorDescription),
		}
	}

	if tok.AccessToken == "" || tok.InstanceURL == "" {
		return nil, &sfapi.AuthError{Err: sfapi.ErrNotAuthenticated}
	}

	return tok.session(), nil
}
