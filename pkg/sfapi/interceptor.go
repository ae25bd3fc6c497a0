package sfapi

import (
	"context"
	"net/http"
	"time"
)

// RequestInfo is the interceptor's view of an outgoing request. Header
// changes are applied before the request is sent; Method and Path are
// informational.
type RequestInfo struct {
	Method  string
	Path    string
	Headers http.Header
}

// ResponseInfo is the interceptor's view of a received response.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
}

// RequestInterceptor runs before a request is sent. Returning an error
// aborts the call without touching the wire.
type RequestInterceptor func(ctx context.Context, req *RequestInfo) error

// ResponseInterceptor runs after a response is received, before it is
// decoded. It sees error responses too.
type ResponseInterceptor func(ctx context.Context, req *RequestInfo, resp *ResponseInfo) error

// CallOptionsInterceptor sets the Sforce-Call-Options header on every
// request, identifying the calling application and optionally pinning the
// default namespace for unqualified custom object names.
func CallOptionsInterceptor(clientName, defaultNamespace string) RequestInterceptor {
	value := "client=" + clientName
	if defaultNamespace != "" {
		value += ";defaultNamespace=" + defaultNamespace
	}

	return func(_ context.Context, req *RequestInfo) error {
		req.Headers.Set("Sforce-Call-Options", value)

		return nil
	}
}

// HeaderInterceptor sets a fixed header on every request, for org-specific
// headers like Sforce-Duplicate-Rule-Header or Sforce-Auto-Assign.
func HeaderInterceptor(name, value string) RequestInterceptor {
	return func(_ context.Context, req *RequestInfo) error {
		req.Headers.Set(name, value)

		return nil
	}
}

// LoggingInterceptor logs every outgoing request through the given logger.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(_ context.Context, req *RequestInfo) error {
		logger.Debug("API Request", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs every response through the given logger.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(_ context.Context, req *RequestInfo, resp *ResponseInfo) error {
		logger.Debug("API Response", map[string]interface{}{
			"method":      req.Method,
			"path":        req.Path,
			"status_code": resp.StatusCode,
		})

		return nil
	}
}

// RateLimitInterceptor throttles outgoing requests to requestsPerSecond
// with a token bucket, so a burst of Collections groups cannot trip the
// org's concurrent API limits.
func RateLimitInterceptor(requestsPerSecond int) RequestInterceptor {
	bucket := make(chan struct{}, requestsPerSecond)

	for i := 0; i < requestsPerSecond; i++ {
		bucket <- struct{}{}
	}

	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(requestsPerSecond))
		defer ticker.Stop()

		for range ticker.C {
			select {
			case bucket <- struct{}{}:
			default:
			}
		}
	}()

	return func(ctx context.Context, _ *RequestInfo) error {
		select {
		case <-bucket:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
