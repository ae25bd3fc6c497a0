package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// CompositeClient implements sfapi.CompositeClient: one HTTP exchange
// carrying an ordered sequence of sub-requests the service executes
// sequentially, resolving @{ref.path} aliases between them.
type CompositeClient struct {
	httpClient *http.Client
}

// NewCompositeClient creates a new composite batch client.
func NewCompositeClient(httpClient *http.Client) *CompositeClient {
	return &CompositeClient{httpClient: httpClient}
}

// compositeRequest is the wire shape of the composite endpoint.
type compositeRequest struct {
	AllOrNone          bool               `json:"allOrNone"`
	CollateSubrequests bool               `json:"collateSubrequests"`
	CompositeRequest   []compositeSubWire `json:"compositeRequest"`
}

type compositeSubWire struct {
	Method      string                 `json:"method"`
	URL         string                 `json:"url"`
	ReferenceID string                 `json:"referenceId"`
	Body        map[string]interface{} `json:"body,omitempty"`
}

// Execute implements sfapi.CompositeClient.Execute.
func (c *CompositeClient) Execute(ctx context.Context, batch *sfapi.CompositeBatch) (*sfapi.CompositeResult, error) {
	if batch == nil || batch.Len() == 0 {
		return nil, sfapi.ErrCollectionEmpty
	}

	subs := batch.Subrequests()
	wire := compositeRequest{
		AllOrNone:          batch.AllOrNone,
		CollateSubrequests: batch.CollateSubrequests,
		CompositeRequest:   make([]compositeSubWire, len(subs)),
	}

	versionRoot := "/services/data/" + c.httpClient.APIVersion() + "/"

	for i, sub := range subs {
		// Sub-request URLs are written relative to the data root, the same
		// convention resource clients use for top-level paths.
		fullURL := sub.URL
		if len(fullURL) == 0 || fullURL[0] != '/' {
			fullURL = versionRoot + fullURL
		}

		wire.CompositeRequest[i] = compositeSubWire{
			Method:      sub.Method,
			URL:         fullURL,
			ReferenceID: sub.ReferenceID,
			Body:        sub.Body,
		}
	}

	resp, err := c.httpClient.Post(ctx, "composite", wire)
	if err != nil {
		return nil, fmt.Errorf("executing composite batch: %w", err)
	}

	var result sfapi.CompositeResult
	if err := resp.JSON(&result); err != nil {
		return nil, fmt.Errorf("parsing composite response: %w", err)
	}

	if len(result.Subresponses) != len(subs) {
		return nil, &sfapi.ProtocolError{
			Message: fmt.Sprintf("composite call returned %d sub-responses for %d sub-requests",
				len(result.Subresponses), len(subs)),
		}
	}

	return &result, nil
}
