package sfapi

import (
	"encoding/json"
	"strings"
)

// DmlError is one error entry attached to a failed per-record outcome.
type DmlError struct {
	Message    string   `json:"message"              yaml:"message"`
	StatusCode string   `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	ErrorCode  string   `json:"errorCode,omitempty"  yaml:"errorCode,omitempty"`
	Fields     []string `json:"fields,omitempty"     yaml:"fields,omitempty"`
}

// Code returns the error code regardless of which wire field carried it.
func (e *DmlError) Code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}

	return e.StatusCode
}

// DmlResult is the per-record outcome of a DML operation. A batch call
// yields exactly one DmlResult per input record, in input order; a failed
// record never disturbs its siblings' outcomes.
type DmlResult struct {
	ID      *ID        `json:"id,omitempty"      yaml:"id,omitempty"`
	Success bool       `json:"success"           yaml:"success"`
	Created *bool      `json:"created,omitempty" yaml:"created,omitempty"`
	Errors  []DmlError `json:"errors,omitempty"  yaml:"errors,omitempty"`
}

// Err converts a failed outcome into an error, or nil on success.
func (r *DmlResult) Err() error {
	if r.Success {
		return nil
	}

	apiErr := &APIError{}
	for _, e := range r.Errors {
		apiErr.Errors = append(apiErr.Errors, ErrorDetail{
			Message:    e.Message,
			ErrorCode:  e.ErrorCode,
			StatusCode: e.StatusCode,
			Fields:     e.Fields,
		})
	}

	return apiErr
}

// QueryResult is one page of a query response.
type QueryResult struct {
	TotalSize      int               `json:"totalSize"                yaml:"totalSize"`
	Done           bool              `json:"done"                     yaml:"done"`
	Records        []json.RawMessage `json:"records"                  yaml:"records"`
	NextRecordsURL string            `json:"nextRecordsUrl,omitempty" yaml:"nextRecordsUrl,omitempty"`
}

// BulkJobState is the lifecycle state of an asynchronous bulk job.
// Transitions are monotonic: Open → UploadComplete → InProgress →
// JobComplete/Failed, with Open/UploadComplete → Aborted or Failed.
type BulkJobState string

// Bulk job states.
const (
	BulkJobOpen           BulkJobState = "Open"
	BulkJobUploadComplete BulkJobState = "UploadComplete"
	BulkJobInProgress     BulkJobState = "InProgress"
	BulkJobComplete       BulkJobState = "JobComplete"
	BulkJobFailed         BulkJobState = "Failed"
	BulkJobAborted        BulkJobState = "Aborted"
)

// IsTerminal reports whether the state admits no further transitions.
func (s BulkJobState) IsTerminal() bool {
	return s == BulkJobComplete || s == BulkJobFailed || s == BulkJobAborted
}

// rank orders states along the forward path for monotonicity checks.
// Terminal states share the top rank.
func (s BulkJobState) rank() int {
	switch s {
	case BulkJobOpen:
		return 0
	case BulkJobUploadComplete:
		return 1
	case BulkJobInProgress:
		return 2
	case BulkJobComplete, BulkJobFailed, BulkJobAborted:
		return 3
	default:
		return -1
	}
}

// Precedes reports whether s may legally transition to next. Equal states
// are allowed (polling observes no change).
func (s BulkJobState) Precedes(next BulkJobState) bool {
	if s == next {
		return true
	}

	if s.IsTerminal() {
		return false
	}

	// Aborting is only possible before processing starts.
	if next == BulkJobAborted {
		return s == BulkJobOpen || s == BulkJobUploadComplete
	}

	return s.rank() < next.rank()
}

// BulkOperation is the DML verb a bulk ingest job performs.
type BulkOperation string

// Bulk ingest operations.
const (
	BulkInsert     BulkOperation = "insert"
	BulkUpdate     BulkOperation = "update"
	BulkUpsert     BulkOperation = "upsert"
	BulkDelete     BulkOperation = "delete"
	BulkHardDelete BulkOperation = "hardDelete"
)

// Bulk export operations.
const (
	BulkQuery    BulkOperation = "query"
	BulkQueryAll BulkOperation = "queryAll"
)

// IsQuery reports whether the operation is an export rather than an ingest.
func (o BulkOperation) IsQuery() bool {
	return o == BulkQuery || o == BulkQueryAll
}

// BulkJob describes one asynchronous ingest or export job.
type BulkJob struct {
	ID                     ID            `json:"id"                              yaml:"id"`
	Object                 string        `json:"object"                          yaml:"object"`
	Operation              BulkOperation `json:"operation"                       yaml:"operation"`
	State                  BulkJobState  `json:"state"                           yaml:"state"`
	ExternalIDFieldName    string        `json:"externalIdFieldName,omitempty"   yaml:"externalIdFieldName,omitempty"`
	ContentURL             string        `json:"contentUrl,omitempty"            yaml:"contentUrl,omitempty"`
	CreatedDate            string        `json:"createdDate,omitempty"           yaml:"createdDate,omitempty"`
	NumberRecordsProcessed int           `json:"numberRecordsProcessed"          yaml:"numberRecordsProcessed"`
	NumberRecordsFailed    int           `json:"numberRecordsFailed"             yaml:"numberRecordsFailed"`
	ErrorMessage           string        `json:"errorMessage,omitempty"          yaml:"errorMessage,omitempty"`
}

// BulkResults partitions a finished job's records. The three partitions are
// disjoint and together cover every submitted record exactly once.
type BulkResults struct {
	Successful  []DmlResult
	Failed      []DmlResult
	Unprocessed []*Record
}

// FieldDescribe is the trimmed per-field schema description the client
// needs: the declared value kind and DML capability flags.
type FieldDescribe struct {
	Name       string `json:"name"       yaml:"name"`
	Label      string `json:"label"      yaml:"label"`
	SoapType   string `json:"soapType"   yaml:"soapType"`
	Type       string `json:"type"       yaml:"type"`
	Createable bool   `json:"createable" yaml:"createable"`
	Updateable bool   `json:"updateable" yaml:"updateable"`
	Nillable   bool   `json:"nillable"   yaml:"nillable"`
	ExternalID bool   `json:"externalId" yaml:"externalId"`
}

// Kind maps the declared SOAP type onto a Value kind. Unknown types decode
// as strings.
func (f *FieldDescribe) Kind() ValueKind {
	switch f.SoapType {
	case "xsd:int":
		return KindInt
	case "xsd:double":
		return KindDouble
	case "xsd:boolean":
		return KindBool
	case "xsd:date":
		return KindDate
	case "xsd:dateTime":
		return KindDateTime
	case "tns:ID":
		return KindID
	default:
		return KindString
	}
}

// ObjectDescribe is the per-object-type schema description, fetched lazily
// and shared read-only through the schema cache.
type ObjectDescribe struct {
	Name       string          `json:"name"       yaml:"name"`
	Label      string          `json:"label"      yaml:"label"`
	Createable bool            `json:"createable" yaml:"createable"`
	Updateable bool            `json:"updateable" yaml:"updateable"`
	Deletable  bool            `json:"deletable"  yaml:"deletable"`
	Queryable  bool            `json:"queryable"  yaml:"queryable"`
	KeyPrefix  string          `json:"keyPrefix"  yaml:"keyPrefix"`
	Fields     []FieldDescribe `json:"fields"     yaml:"fields"`
}

// Field returns the describe entry for the named field, matched
// case-insensitively, or nil.
func (d *ObjectDescribe) Field(name string) *FieldDescribe {
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			return &d.Fields[i]
		}
	}

	return nil
}
