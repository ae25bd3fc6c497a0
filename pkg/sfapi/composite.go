package sfapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Ref builds the alias token for reading a field out of an earlier
// sub-request's response, e.g. Ref("newAccount", "id") → "@{newAccount.id}".
// The service substitutes the token verbatim before executing the later
// sub-request; the client never resolves it locally.
func Ref(referenceID, fieldPath string) string {
	return fmt.Sprintf("@{%s.%s}", referenceID, fieldPath)
}

// CompositeSubrequest is one entry in a composite batch.
type CompositeSubrequest struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	ReferenceID string         `json:"referenceId"`
	Body        map[string]any `json:"body,omitempty"`
}

// CompositeBatch accumulates sub-requests in submission order. The service
// executes them sequentially in that order and exposes each result under
// its reference ID, which is what makes @{ref.path} substitution in later
// bodies work. The batch never re-orders.
type CompositeBatch struct {
	// AllOrNone rolls the whole batch back when any sub-request fails.
	// Default false: each sub-request's outcome stands on its own.
	AllOrNone bool

	// CollateSubrequests lets the service group adjacent sub-requests of
	// the same kind into one internal call. Ordering and per-sub-request
	// outcomes are unaffected.
	CollateSubrequests bool

	subrequests []CompositeSubrequest
	refs        map[string]int
}

// NewCompositeBatch creates an empty batch.
func NewCompositeBatch() *CompositeBatch {
	return &CompositeBatch{refs: make(map[string]int)}
}

// Len returns the number of accumulated sub-requests.
func (b *CompositeBatch) Len() int {
	return len(b.subrequests)
}

// Subrequests returns the accumulated sub-requests in submission order.
func (b *CompositeBatch) Subrequests() []CompositeSubrequest {
	out := make([]CompositeSubrequest, len(b.subrequests))
	copy(out, b.subrequests)

	return out
}

// Add appends a raw sub-request. An empty ReferenceID gets a generated
// one; a duplicate is rejected since the alias table must be unambiguous.
func (b *CompositeBatch) Add(sub CompositeSubrequest) (string, error) {
	if sub.ReferenceID == "" {
		sub.ReferenceID = "ref" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	if _, exists := b.refs[sub.ReferenceID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateReferenceID, sub.ReferenceID)
	}

	b.refs[sub.ReferenceID] = len(b.subrequests)
	b.subrequests = append(b.subrequests, sub)

	return sub.ReferenceID, nil
}

// AddCreate appends a record insert. Later sub-requests can reference the
// assigned ID as Ref(referenceID, "id").
func (b *CompositeBatch) AddCreate(referenceID string, record RecordAccessor) (string, error) {
	return b.Add(CompositeSubrequest{
		Method:      "POST",
		URL:         "sobjects/" + record.ObjectType(),
		ReferenceID: referenceID,
		Body:        MarshalFields(record, false, false),
	})
}

// AddUpdate appends a record update. The record's ID may be a Reference to
// an earlier sub-request.
func (b *CompositeBatch) AddUpdate(referenceID string, record RecordAccessor) (string, error) {
	idPart, err := subjectID(record)
	if err != nil {
		return "", err
	}

	return b.Add(CompositeSubrequest{
		Method:      "PATCH",
		URL:         "sobjects/" + record.ObjectType() + "/" + idPart,
		ReferenceID: referenceID,
		Body:        MarshalFields(record, false, false),
	})
}

// AddDelete appends a record delete.
func (b *CompositeBatch) AddDelete(referenceID string, record RecordAccessor) (string, error) {
	idPart, err := subjectID(record)
	if err != nil {
		return "", err
	}

	return b.Add(CompositeSubrequest{
		Method:      "DELETE",
		URL:         "sobjects/" + record.ObjectType() + "/" + idPart,
		ReferenceID: referenceID,
	})
}

// AddGet appends a record retrieve.
func (b *CompositeBatch) AddGet(referenceID, objectType, id string) (string, error) {
	return b.Add(CompositeSubrequest{
		Method:      "GET",
		URL:         "sobjects/" + objectType + "/" + id,
		ReferenceID: referenceID,
	})
}

// subjectID renders a record's ID path segment: either a real ID or an
// alias token resolved by the service inside the batch.
func subjectID(record RecordAccessor) (string, error) {
	idValue := record.Field("Id")

	switch idValue.Kind() {
	case KindID:
		id, _ := idValue.IDValue()

		return id.String(), nil
	case KindReference:
		return idValue.ReferenceValue(), nil
	default:
		return "", ErrRecordDoesNotExist
	}
}

// CompositeSubresponse is one sub-request's own outcome. The batch call
// succeeding says nothing about individual sub-requests: each carries its
// own HTTP status and failure isolation means reading each one.
type CompositeSubresponse struct {
	ReferenceID    string          `json:"referenceId"`
	HTTPStatusCode int             `json:"httpStatusCode"`
	Body           json.RawMessage `json:"body,omitempty"`
}

// Success reports whether the sub-request itself succeeded.
func (r *CompositeSubresponse) Success() bool {
	return r.HTTPStatusCode >= 200 && r.HTTPStatusCode < 300
}

// DmlOutcome decodes the sub-response into a per-record outcome: the
// service returns a DmlResult body for 2xx DML sub-requests and an error
// array otherwise.
func (r *CompositeSubresponse) DmlOutcome() DmlResult {
	if r.Success() {
		var result DmlResult
		if len(r.Body) > 0 && json.Unmarshal(r.Body, &result) == nil {
			return result
		}

		// 204-style success with no body (update, delete).
		return DmlResult{Success: true}
	}

	var details []DmlError

	_ = json.Unmarshal(r.Body, &details)

	return DmlResult{Success: false, Errors: details}
}

// Err returns the sub-request's failure as an APIError, or nil on success.
func (r *CompositeSubresponse) Err() error {
	if r.Success() {
		return nil
	}

	apiErr := &APIError{StatusCode: r.HTTPStatusCode}
	_ = json.Unmarshal(r.Body, &apiErr.Errors)

	return apiErr
}

// CompositeResult is the whole batch's response, in submission order.
type CompositeResult struct {
	Subresponses []CompositeSubresponse `json:"compositeResponse"`
}

// Result returns the sub-response declared under referenceID, or nil.
func (r *CompositeResult) Result(referenceID string) *CompositeSubresponse {
	for i := range r.Subresponses {
		if r.Subresponses[i].ReferenceID == referenceID {
			return &r.Subresponses[i]
		}
	}

	return nil
}
