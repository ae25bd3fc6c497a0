package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// RecordsClient implements sfapi.RecordsClient: one HTTP exchange per
// record against the sObject Rows endpoints.
type RecordsClient struct {
	httpClient *http.Client
	decoder    *recordDecoder
}

// NewRecordsClient creates a new single-record client.
func NewRecordsClient(httpClient *http.Client, decoder *recordDecoder) *RecordsClient {
	return &RecordsClient{httpClient: httpClient, decoder: decoder}
}

// Get implements sfapi.RecordsClient.Get.
func (c *RecordsClient) Get(ctx context.Context, objectType string, id sfapi.ID, fields []string) (*sfapi.Record, error) {
	var query url.Values
	if len(fields) > 0 {
		query = url.Values{"fields": {strings.Join(fields, ",")}}
	}

	resp, err := c.httpClient.Get(ctx, "sobjects/"+objectType+"/"+id.String(), query)
	if err != nil {
		return nil, fmt.Errorf("getting %s record: %w", objectType, err)
	}

	var payload map[string]interface{}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("parsing %s record: %w", objectType, err)
	}

	return c.decoder.decode(ctx, objectType, payload)
}

// Create implements sfapi.RecordsClient.Create.
func (c *RecordsClient) Create(ctx context.Context, record sfapi.RecordAccessor) (*sfapi.DmlResult, error) {
	if _, hasID := record.RecordID(); hasID {
		return nil, sfapi.ErrRecordExists
	}

	resp, err := c.httpClient.Post(ctx, "sobjects/"+record.ObjectType(), sfapi.MarshalFields(record, false, false))
	if err != nil {
		return nil, fmt.Errorf("creating %s record: %w", record.ObjectType(), err)
	}

	return decodeDmlResult(resp.Body)
}

// Update implements sfapi.RecordsClient.Update.
func (c *RecordsClient) Update(ctx context.Context, record sfapi.RecordAccessor) error {
	id, hasID := record.RecordID()
	if !hasID {
		return sfapi.ErrRecordDoesNotExist
	}

	path := "sobjects/" + record.ObjectType() + "/" + id.String()

	_, err := c.httpClient.Patch(ctx, path, sfapi.MarshalFields(record, false, false))
	if err != nil {
		return fmt.Errorf("updating %s record: %w", record.ObjectType(), err)
	}

	return nil
}

// Upsert implements sfapi.RecordsClient.Upsert. The external ID field's
// value addresses the record; it rides in the path, not the body.
func (c *RecordsClient) Upsert(ctx context.Context, record sfapi.RecordAccessor, externalIDField string) (*sfapi.DmlResult, error) {
	keyValue := record.Field(externalIDField)
	if keyValue.IsNull() {
		return nil, fmt.Errorf("%w: external ID field %s is not set", sfapi.ErrRecordDoesNotExist, externalIDField)
	}

	body := sfapi.MarshalFields(record, false, false)

	for key := range body {
		if strings.EqualFold(key, externalIDField) {
			delete(body, key)
		}
	}

	path := "sobjects/" + record.ObjectType() + "/" + externalIDField + "/" + url.PathEscape(keyValue.AsString())

	resp, err := c.httpClient.Patch(ctx, path, body)
	if err != nil {
		return nil, fmt.Errorf("upserting %s record: %w", record.ObjectType(), err)
	}

	// An update of an existing record comes back 204 with no body.
	if len(resp.Body) == 0 {
		created := false

		return &sfapi.DmlResult{Success: true, Created: &created}, nil
	}

	return decodeDmlResult(resp.Body)
}

// Delete implements sfapi.RecordsClient.Delete.
func (c *RecordsClient) Delete(ctx context.Context, objectType string, id sfapi.ID) error {
	_, err := c.httpClient.Delete(ctx, "sobjects/"+objectType+"/"+id.String(), nil)
	if err != nil {
		return fmt.Errorf("deleting %s record: %w", objectType, err)
	}

	return nil
}

func decodeDmlResult(body []byte) (*sfapi.DmlResult, error) {
	var result sfapi.DmlResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing DML outcome: %w", err)
	}

	return &result, nil
}
