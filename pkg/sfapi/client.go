package sfapi

import (
	"context"
	"time"
)

// Client is the entry point to the API: one logical operation set exposed
// over each of the service's transports. A Client is safe for concurrent
// use; all sub-clients share one session.
type Client interface {
	// Records exposes single-record REST operations.
	Records() RecordsClient
	// Collections exposes the batched Collections transport.
	Collections() CollectionsClient
	// Composite exposes dependency-ordered Composite batches.
	Composite() CompositeClient
	// Query exposes SOQL queries as lazy record streams.
	Query() QueryClient
	// Bulk exposes asynchronous bulk ingest and export jobs.
	Bulk() BulkClient
	// Describes exposes object schema metadata with a shared cache.
	Describes() DescribeClient
}

// RecordsClient performs one HTTP exchange per record.
type RecordsClient interface {
	// Get retrieves one record by ID. fields limits the returned field
	// set; nil retrieves the default set.
	Get(ctx context.Context, objectType string, id ID, fields []string) (*Record, error)
	// Create inserts a record. The record must not already carry an ID;
	// the outcome carries the assigned one.
	Create(ctx context.Context, record RecordAccessor) (*DmlResult, error)
	// Update patches a record in place. The record must carry an ID.
	Update(ctx context.Context, record RecordAccessor) error
	// Upsert inserts or updates keyed by an external ID field. The
	// outcome's Created flag distinguishes the two.
	Upsert(ctx context.Context, record RecordAccessor, externalIDField string) (*DmlResult, error)
	// Delete removes one record by ID.
	Delete(ctx context.Context, objectType string, id ID) error
}

// CollectionsOptions tunes the batched Collections transport.
type CollectionsOptions struct {
	// AllOrNone makes the service roll back a whole group when any record
	// in it fails. Default false: siblings succeed independently.
	AllOrNone bool
	// BatchSize is the number of records per Collections call, capped at
	// CollectionsBatchLimit. Zero means the cap.
	BatchSize int
	// Parallel dispatches up to this many groups concurrently. Zero or
	// one dispatches sequentially. Outcome order is input order either way.
	Parallel int
}

// CollectionsBatchLimit is the service's per-call record cap.
const CollectionsBatchLimit = 200

// CollectionsClient runs ordered record sequences through the Collections
// transport, returning exactly one DmlResult per input record in input
// order.
type CollectionsClient interface {
	Create(ctx context.Context, records []RecordAccessor, opts *CollectionsOptions) ([]DmlResult, error)
	Update(ctx context.Context, records []RecordAccessor, opts *CollectionsOptions) ([]DmlResult, error)
	Upsert(ctx context.Context, records []RecordAccessor, externalIDField string, opts *CollectionsOptions) ([]DmlResult, error)
	Delete(ctx context.Context, ids []ID, opts *CollectionsOptions) ([]DmlResult, error)
	// Retrieve fetches many records by ID in one call. Missing records
	// come back nil at their input position.
	Retrieve(ctx context.Context, objectType string, ids []ID, fields []string) ([]*Record, error)
}

// CompositeClient executes a CompositeBatch as one request. Sub-requests
// run sequentially server-side in submission order; each reports its own
// status, and an earlier failure never aborts later independent
// sub-requests.
type CompositeClient interface {
	Execute(ctx context.Context, batch *CompositeBatch) (*CompositeResult, error)
}

// QueryClient issues opaque query strings and exposes results as lazy
// streams.
type QueryClient interface {
	// Query runs a query and returns an iterator over its records.
	Query(ctx context.Context, soql string) (*RecordIterator, error)
	// QueryAll includes archived and soft-deleted records.
	QueryAll(ctx context.Context, soql string) (*RecordIterator, error)
	// Count runs a query and returns only its total size.
	Count(ctx context.Context, soql string) (int, error)
}

// BulkJobOptions tunes bulk ingest job creation.
type BulkJobOptions struct {
	// ExternalIDFieldName is required for upsert jobs.
	ExternalIDFieldName string
}

// BulkClient drives the asynchronous ingest state machine. Polling is
// caller-looped (Poll) or caller-intervaled (Wait) so the caller's own
// timeout stays in control.
type BulkClient interface {
	// CreateJob opens a new ingest job in state Open.
	CreateJob(ctx context.Context, objectType string, operation BulkOperation, opts *BulkJobOptions) (*BulkJob, error)
	// Upload adds one delimited-text chunk to an Open job.
	Upload(ctx context.Context, job *BulkJob, data []byte) error
	// UploadRecords CSV-encodes records and uploads them.
	UploadRecords(ctx context.Context, job *BulkJob, records []RecordAccessor) error
	// Close signals upload completion, transitioning Open→UploadComplete.
	// Idempotent if the job is already past Open.
	Close(ctx context.Context, job *BulkJob) error
	// Abort cancels a job that has not started processing.
	Abort(ctx context.Context, job *BulkJob) error
	// Poll performs a single status check and updates the handle.
	Poll(ctx context.Context, job *BulkJob) (BulkJobState, error)
	// Wait polls on the given interval until a terminal state, backing
	// off on transient network failure.
	Wait(ctx context.Context, job *BulkJob, interval time.Duration) (BulkJobState, error)
	// Results retrieves the three disjoint outcome partitions of a
	// finished job.
	Results(ctx context.Context, job *BulkJob) (*BulkResults, error)
	// CreateQueryJob opens an asynchronous export job.
	CreateQueryJob(ctx context.Context, soql string, queryAll bool) (*BulkJob, error)
	// QueryResults retrieves one locator-paged chunk of an export job's
	// output.
	QueryResults(ctx context.Context, jobID ID, locator string, maxRecords int) (*BulkQueryPage, error)
}

// BulkQueryPage is one chunk of an export job's CSV output. An empty
// Locator means the output is exhausted.
type BulkQueryPage struct {
	Data    []byte
	Locator string
}

// DescribeClient fetches object schema metadata. Entries are fetched
// lazily on first reference, shared read-only thereafter, and invalidated
// only by explicit caller action.
type DescribeClient interface {
	Describe(ctx context.Context, objectType string) (*ObjectDescribe, error)
	Invalidate(objectType string)
	InvalidateAll()
}

// Config carries everything needed to build a Client.
//
// # Authentication precedence
//
//  1. AccessToken + InstanceURL: used directly; expiry is fatal since a
//     static token cannot be refreshed.
//  2. RefreshToken + ClientID/ClientSecret: refresh-token grant.
//  3. Username/Password + ClientID/ClientSecret: password grant, with
//     SecurityToken appended to the password when set.
//
// Applications with other flows supply their own credential source to
// sfclient.NewWithSource.
type Config struct {
	// LoginURL is the authentication endpoint base, e.g.
	// "https://login.salesforce.com". The credential exchange returns the
	// instance URL all data requests go to.
	LoginURL string `yaml:"login_url"`
	// APIVersion selects the REST API version, e.g. "v55.0". Empty means
	// DefaultAPIVersion.
	APIVersion string `yaml:"api_version"`

	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	SecurityToken string `yaml:"security_token"`
	RefreshToken  string `yaml:"refresh_token"`
	AccessToken   string `yaml:"access_token"`
	// InstanceURL is required with AccessToken and ignored otherwise.
	InstanceURL string `yaml:"instance_url"`

	// RetryMax caps transport-level retries for 5xx and connection
	// failures. Zero means a sensible default.
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`

	// Debug enables request/response logging through Logger.
	Debug     bool   `yaml:"debug"`
	UserAgent string `yaml:"user_agent"`
	Logger    Logger `yaml:"-"`

	// RequestInterceptors and ResponseInterceptors hook into the request
	// pipeline, in order: custom headers, client-side throttling, audit
	// logging.
	RequestInterceptors  []RequestInterceptor  `yaml:"-"`
	ResponseInterceptors []ResponseInterceptor `yaml:"-"`
}

// DefaultAPIVersion is used when Config.APIVersion is empty.
const DefaultAPIVersion = "v55.0"
