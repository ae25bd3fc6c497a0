package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/sfapi/internal/auth"
	sfhttp "github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serverSource issues numbered tokens pointing at a test server.
type serverSource struct {
	instanceURL string
	calls       atomic.Int64
}

func (s *serverSource) Authenticate(context.Context) (*sfapi.Session, error) {
	n := s.calls.Add(1)

	return &sfapi.Session{
		AccessToken: fmt.Sprintf("token-%d", n),
		InstanceURL: s.instanceURL,
	}, nil
}

// MockLogger collects log entries.
type MockLogger struct {
	logs []map[string]interface{}
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "debug", "msg": msg, "fields": fields})
}

func (l *MockLogger) Info(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "info", "msg": msg, "fields": fields})
}

func (l *MockLogger) Warn(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "warn", "msg": msg, "fields": fields})
}

func (l *MockLogger) Error(msg string, fields map[string]interface{}) {
	l.logs = append(l.logs, map[string]interface{}{"level": "error", "msg": msg, "fields": fields})
}

func newTestClient(serverURL string, opts ...sfhttp.Option) *sfhttp.Client {
	source := &serverSource{instanceURL: serverURL}
	manager := auth.NewManager(source, nil)

	return sfhttp.NewClient(manager, opts...)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Do(t *testing.T) {
	t.Parallel()
	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/services/data/v55.0/sobjects/Account/001A0000006Vm9rIAC", request.URL.Path)
			assert.Equal(t, "GET", request.Method)
			assert.Equal(t, "Bearer token-1", request.Header.Get("Authorization"))
			assert.Equal(t, "application/json", request.Header.Get("Accept"))

			response := map[string]string{"Id": "001A0000006Vm9rIAC", "Name": "Acme"}
			_ = json.NewEncoder(writer).Encode(response)
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		resp, err := client.Get(context.Background(), "sobjects/Account/001A0000006Vm9rIAC", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var result map[string]string

		err = resp.JSON(&result)
		require.NoError(t, err)
		assert.Equal(t, "Acme", result["Name"])
	})

	t.Run("absolute path bypasses the versioned root", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/services/data/v55.0/query/01g000nextRecords", request.URL.Path)
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		resp, err := client.Get(context.Background(), "/services/data/v55.0/query/01g000nextRecords", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("request with query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "SELECT Id FROM Account", request.URL.Query().Get("q"))
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		resp, err := client.Get(context.Background(), "query", url.Values{"q": []string{"SELECT Id FROM Account"}})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("request with body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "POST", request.Method)
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

			var body map[string]string

			_ = json.NewDecoder(request.Body).Decode(&body)
			assert.Equal(t, "Acme", body["Name"])

			writer.WriteHeader(http.StatusCreated)
			_, _ = writer.Write([]byte(`{"id":"001A0000006Vm9rIAC","success":true}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		resp, err := client.Post(context.Background(), "sobjects/Account", map[string]string{"Name": "Acme"})
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
	})

	t.Run("raw body upload", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "PUT", request.Method)
			assert.Equal(t, "text/csv", request.Header.Get("Content-Type"))
			writer.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		resp, err := client.Put(context.Background(), "jobs/ingest/750X/batches", "text/csv", []byte("Name\nAcme\n"))
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
	})

	t.Run("error response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`[{"message":"The requested resource does not exist","errorCode":"NOT_FOUND"}]`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)

		resp, err := client.Get(context.Background(), "sobjects/Account/gone", nil)
		require.Error(t, err)
		assert.Equal(t, 404, resp.StatusCode)

		apiErr := &sfapi.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "NOT_FOUND", apiErr.First().Code())
		assert.True(t, sfapi.IsNotFound(err))
	})

	t.Run("connection failure surfaces as NetworkError", func(t *testing.T) {
		t.Parallel()

		client := newTestClient("http://127.0.0.1:1", sfhttp.WithHTTPClient(http.DefaultClient))

		_, err := client.Get(context.Background(), "sobjects/Account", nil)
		require.Error(t, err)

		netErr := &sfapi.NetworkError{}
		assert.ErrorAs(t, err, &netErr)
	})

	t.Run("with debug logging", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(writer).Encode(map[string]string{"result": "ok"})
		}))
		defer server.Close()

		logger := &MockLogger{}
		client := newTestClient(server.URL, sfhttp.WithLogger(logger), sfhttp.WithDebug(true))

		_, err := client.Get(context.Background(), "limits", nil)
		require.NoError(t, err)

		require.Len(t, logger.logs, 2)
		assert.Equal(t, "HTTP Request", logger.logs[0]["msg"])
		assert.Equal(t, "HTTP Response", logger.logs[1]["msg"])
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_SessionExpiry(t *testing.T) {
	t.Parallel()
	t.Run("refreshes once and replays the request", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			requests.Add(1)

			if request.Header.Get("Authorization") == "Bearer token-1" {
				writer.WriteHeader(http.StatusUnauthorized)
				_, _ = writer.Write([]byte(`[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`))

				return
			}

			assert.Equal(t, "Bearer token-2", request.Header.Get("Authorization"))
			writer.WriteHeader(http.StatusOK)
			_, _ = writer.Write([]byte(`{"Name":"Acme"}`))
		}))
		defer server.Close()

		source := &serverSource{instanceURL: server.URL}
		client := sfhttp.NewClient(auth.NewManager(source, nil))

		resp, err := client.Get(context.Background(), "sobjects/Account/001A0000006Vm9rIAC", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		// One rejected attempt, one replay, two credential exchanges.
		assert.Equal(t, int64(2), requests.Load())
		assert.Equal(t, int64(2), source.calls.Load())
	})

	t.Run("replays at most once", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			writer.WriteHeader(http.StatusUnauthorized)
			_, _ = writer.Write([]byte(`[{"errorCode":"INVALID_SESSION_ID","message":"expired"}]`))
		}))
		defer server.Close()

		source := &serverSource{instanceURL: server.URL}
		client := sfhttp.NewClient(auth.NewManager(source, nil))

		_, err := client.Get(context.Background(), "sobjects/Account/001A0000006Vm9rIAC", nil)
		require.Error(t, err)
		assert.True(t, sfapi.IsSessionExpired(err))

		// The replayed rejection is final.
		assert.Equal(t, int64(2), requests.Load())
	})

	t.Run("ordinary 401 is not refreshed", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			writer.WriteHeader(http.StatusUnauthorized)
			_, _ = writer.Write([]byte(`[{"errorCode":"INSUFFICIENT_ACCESS","message":"no access"}]`))
		}))
		defer server.Close()

		source := &serverSource{instanceURL: server.URL}
		client := sfhttp.NewClient(auth.NewManager(source, nil))

		_, err := client.Get(context.Background(), "sobjects/Account/001A0000006Vm9rIAC", nil)
		require.Error(t, err)

		assert.Equal(t, int64(1), requests.Load())
		assert.Equal(t, int64(1), source.calls.Load())
	})
}
