// Package client implements the sfapi resource clients on top of the
// shared transport.
package client

import (
	"context"

	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Client implements the sfapi.Client interface. All sub-clients share one
// transport client and therefore one session and one schema cache.
type Client struct {
	httpClient *http.Client
	logger     sfapi.Logger

	records     *RecordsClient
	collections *CollectionsClient
	composite   *CompositeClient
	query       *QueryClient
	bulk        *BulkClient
	describes   *DescribesClient
}

// New wires the resource clients around a transport client.
func New(httpClient *http.Client, logger sfapi.Logger) *Client {
	if logger == nil {
		logger = sfapi.NoopLogger{}
	}

	client := &Client{
		httpClient: httpClient,
		logger:     logger,
	}

	client.describes = NewDescribesClient(httpClient)
	decoder := &recordDecoder{describes: client.describes, logger: logger}
	client.records = NewRecordsClient(httpClient, decoder)
	client.collections = NewCollectionsClient(httpClient, decoder)
	client.composite = NewCompositeClient(httpClient)
	client.query = NewQueryClient(httpClient, decoder)
	client.bulk = NewBulkClient(httpClient, logger)

	return client
}

// Records implements sfapi.Client.Records.
func (c *Client) Records() sfapi.RecordsClient {
	return c.records
}

// Collections implements sfapi.Client.Collections.
func (c *Client) Collections() sfapi.CollectionsClient {
	return c.collections
}

// Composite implements sfapi.Client.Composite.
func (c *Client) Composite() sfapi.CompositeClient {
	return c.composite
}

// Query implements sfapi.Client.Query.
func (c *Client) Query() sfapi.QueryClient {
	return c.query
}

// Bulk implements sfapi.Client.Bulk.
func (c *Client) Bulk() sfapi.BulkClient {
	return c.bulk
}

// Describes implements sfapi.Client.Describes.
func (c *Client) Describes() sfapi.DescribeClient {
	return c.describes
}

// recordDecoder turns response payloads into Records, consulting the shared
// schema cache for field kinds. A describe that cannot be fetched downgrades
// the decode to raw JSON kinds instead of failing the data call.
type recordDecoder struct {
	describes *DescribesClient
	logger    sfapi.Logger
}

func (d *recordDecoder) decode(ctx context.Context, objectType string, payload map[string]interface{}) (*sfapi.Record, error) {
	var describe *sfapi.ObjectDescribe

	if objectType != "" {
		var err error

		describe, err = d.describes.Describe(ctx, objectType)
		if err != nil {
			d.logger.Debug("describe unavailable, decoding without field kinds", map[string]interface{}{
				"object_type": objectType,
				"error":       err.Error(),
			})

			describe = nil
		}
	}

	// Relationship sub-payloads decode recursively before the flat fields.
	rec := sfapi.NewRecord(objectType)

	flat := make(map[string]interface{}, len(payload))

	for name, raw := range payload {
		sub, ok := raw.(map[string]interface{})
		if !ok || name == "attributes" {
			flat[name] = raw

			continue
		}

		children, err := d.decodeRelated(ctx, sub)
		if err != nil {
			return nil, err
		}

		rec.SetField(name, sfapi.Nested(children))
	}

	decoded, err := sfapi.RecordFromJSON(objectType, flat, describe)
	if err != nil {
		return nil, err
	}

	for _, name := range decoded.FieldNames() {
		rec.SetField(name, decoded.Field(name))
	}

	return rec, nil
}

// decodeRelated handles the two nested shapes a query can return: a child
// subquery result carrying a records array, and a single parent
// relationship object.
func (d *recordDecoder) decodeRelated(ctx context.Context, sub map[string]interface{}) ([]*sfapi.Record, error) {
	raws, isSubquery := sub["records"].([]interface{})
	if !isSubquery {
		child, err := d.decodeOne(ctx, sub)
		if err != nil {
			return nil, err
		}

		return []*sfapi.Record{child}, nil
	}

	children := make([]*sfapi.Record, 0, len(raws))

	for _, raw := range raws {
		payload, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &sfapi.ProtocolError{Message: "nested query record is not an object"}
		}

		child, err := d.decodeOne(ctx, payload)
		if err != nil {
			return nil, err
		}

		children = append(children, child)
	}

	return children, nil
}

func (d *recordDecoder) decodeOne(ctx context.Context, payload map[string]interface{}) (*sfapi.Record, error) {
	return d.decode(ctx, attributesType(payload), payload)
}

// attributesType reads the object type out of a record payload's attributes
// envelope.
func attributesType(payload map[string]interface{}) string {
	attrs, ok := payload["attributes"].(map[string]interface{})
	if !ok {
		return ""
	}

	objectType, _ := attrs["type"].(string)

	return objectType
}
