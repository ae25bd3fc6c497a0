// Package constants centralizes tunable defaults shared across packages.
package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// BulkUploadHTTPTimeout covers large delimited-text uploads.
	BulkUploadHTTPTimeout = 120 * time.Second
)

// Retry limits for the transport-level retry policy.
const (
	// DefaultRetryMax is the default maximum number of transport retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the initial wait between retries.
	DefaultRetryWaitMin = 500 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Bulk job polling.
const (
	// DefaultBulkPollInterval is the wait between bulk job status checks.
	DefaultBulkPollInterval = 2 * time.Second
)
