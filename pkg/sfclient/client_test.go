package sfclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/fivetwenty-io/sfapi/pkg/sfclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CredentialValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *sfapi.Config
		wantErr error
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: sfapi.ErrConfigRequired,
		},
		{
			name:    "no credentials",
			config:  &sfapi.Config{},
			wantErr: sfapi.ErrNoCredentials,
		},
		{
			name:    "access token without instance URL",
			config:  &sfapi.Config{AccessToken: "00Dxx!token"},
			wantErr: sfapi.ErrNoCredentials,
		},
		{
			name:    "refresh token without login URL",
			config:  &sfapi.Config{RefreshToken: "refresh", ClientID: "id"},
			wantErr: sfapi.ErrLoginURLRequired,
		},
		{
			name:    "password without login URL",
			config:  &sfapi.Config{Username: "user@example.com", Password: "hunter2"},
			wantErr: sfapi.ErrLoginURLRequired,
		},
		{
			name: "valid static token",
			config: &sfapi.Config{
				AccessToken: "00Dxx!token",
				InstanceURL: "https://example.my.salesforce.com",
			},
		},
		{
			name: "valid refresh token",
			config: &sfapi.Config{
				LoginURL:     "login.salesforce.com",
				ClientID:     "id",
				ClientSecret: "secret",
				RefreshToken: "refresh",
			},
		},
		{
			name: "valid password",
			config: &sfapi.Config{
				LoginURL: "https://login.salesforce.com",
				ClientID: "id",
				Username: "user@example.com",
				Password: "hunter2",
			},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := sfclient.New(tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestNewWithToken(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/services/data/v55.0/sobjects/Account/describe", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Account","fields":[{"name":"Name","soapType":"xsd:string","type":"string"}]}`))
	})
	mux.HandleFunc("/services/data/v55.0/sobjects/Account/001A0000006Vm9rIAC", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer 00Dxx!token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Id":"001A0000006Vm9rIAC","Name":"Acme"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := sfclient.NewWithToken(server.URL, "00Dxx!token")
	require.NoError(t, err)

	record, err := client.Records().Get(context.Background(), "Account",
		sfapi.MustParseID("001A0000006Vm9r"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", record.Field("Name").StringValue())
}

func TestNewWithPassword(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "user@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "issued-token",
			"instance_url": "` + server.URL + `",
			"token_type": "Bearer",
			"issued_at": "1716291600000"
		}`))
	})
	mux.HandleFunc("/services/data/v55.0/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer issued-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalSize":0,"done":true,"records":[]}`))
	})

	client, err := sfclient.NewWithPassword(server.URL, "id", "secret", "user@example.com", "hunter2")
	require.NoError(t, err)

	count, err := client.Query().Count(context.Background(), "SELECT COUNT() FROM Account")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNewFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sfapi.yml")

	config := `
access_token: 00Dxx!token
instance_url: https://example.my.salesforce.com
api_version: "58.0"
`
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))

	client, err := sfclient.NewFromFile(path)
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = sfclient.NewFromFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
