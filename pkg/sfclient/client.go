// Package sfclient provides the main entry point for creating Salesforce API clients
package sfclient

import (
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/sfapi/internal/auth"
	"github.com/fivetwenty-io/sfapi/internal/client"
	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"gopkg.in/yaml.v3"
)

// New creates a client from a Config, picking the credential source by the
// documented precedence: static access token, then refresh token, then
// username and password.
func New(config *sfapi.Config) (sfapi.Client, error) {
	if config == nil {
		return nil, sfapi.ErrConfigRequired
	}

	source, err := credentialSource(config)
	if err != nil {
		return nil, err
	}

	return NewWithSource(config, source)
}

// NewWithSource creates a client around a caller-supplied credential
// source, for authentication flows the Config fields do not cover (JWT
// bearer assertions, pre-brokered sessions).
func NewWithSource(config *sfapi.Config, source sfapi.CredentialSource) (sfapi.Client, error) {
	if config == nil {
		return nil, sfapi.ErrConfigRequired
	}

	logger := config.Logger
	if logger == nil {
		logger = sfapi.NoopLogger{}
	}

	manager := auth.NewManager(source, logger)

	opts := []http.Option{
		http.WithLogger(logger),
		http.WithDebug(config.Debug),
		http.WithRetryConfig(http.RetryConfig{
			Max:     config.RetryMax,
			WaitMin: config.RetryWaitMin,
			WaitMax: config.RetryWaitMax,
			Timeout: config.HTTPTimeout,
		}),
	}

	if config.APIVersion != "" {
		opts = append(opts, http.WithAPIVersion(normalizeVersion(config.APIVersion)))
	}

	if config.UserAgent != "" {
		opts = append(opts, http.WithUserAgent(config.UserAgent))
	}

	if len(config.RequestInterceptors) > 0 {
		opts = append(opts, http.WithRequestInterceptors(config.RequestInterceptors...))
	}

	if len(config.ResponseInterceptors) > 0 {
		opts = append(opts, http.WithResponseInterceptors(config.ResponseInterceptors...))
	}

	return client.New(http.NewClient(manager, opts...), logger), nil
}

// NewFromFile creates a client from a YAML config file.
func NewFromFile(path string) (sfapi.Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config sfapi.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return New(&config)
}

// NewWithToken creates a client from a pre-obtained access token. Expiry is
// fatal for such a client; prefer refresh-token or password credentials for
// long-running processes.
func NewWithToken(instanceURL, accessToken string) (sfapi.Client, error) {
	return New(&sfapi.Config{
		AccessToken: accessToken,
		InstanceURL: instanceURL,
	})
}

// NewWithPassword creates a client using the username-password flow.
func NewWithPassword(loginURL, clientID, clientSecret, username, password string) (sfapi.Client, error) {
	return New(&sfapi.Config{
		LoginURL:     loginURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
	})
}

func credentialSource(config *sfapi.Config) (sfapi.CredentialSource, error) {
	switch {
	case config.AccessToken != "":
		if config.InstanceURL == "" {
			return nil, fmt.Errorf("%w: instance URL is required with a static access token", sfapi.ErrNoCredentials)
		}

		return &auth.StaticSource{
			AccessToken: config.AccessToken,
			InstanceURL: config.InstanceURL,
		}, nil

	case config.RefreshToken != "":
		if config.LoginURL == "" {
			return nil, sfapi.ErrLoginURLRequired
		}

		return &auth.RefreshTokenSource{
			LoginURL:     normalizeLoginURL(config.LoginURL),
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RefreshToken: config.RefreshToken,
		}, nil

	case config.Username != "" && config.Password != "":
		if config.LoginURL == "" {
			return nil, sfapi.ErrLoginURLRequired
		}

		return &auth.PasswordSource{
			LoginURL:      normalizeLoginURL(config.LoginURL),
			ClientID:      config.ClientID,
			ClientSecret:  config.ClientSecret,
			Username:      config.Username,
			Password:      config.Password,
			SecurityToken: config.SecurityToken,
		}, nil

	default:
		return nil, sfapi.ErrNoCredentials
	}
}

func normalizeLoginURL(loginURL string) string {
	loginURL = strings.TrimSuffix(loginURL, "/")
	if !strings.HasPrefix(loginURL, "http://") && !strings.HasPrefix(loginURL, "https://") {
		loginURL = "https://" + loginURL
	}

	return loginURL
}

func normalizeVersion(version string) string {
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}

	return version
}
