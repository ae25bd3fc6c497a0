package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"golang.org/x/sync/errgroup"
)

// CollectionsClient implements sfapi.CollectionsClient on the sObject
// Collections endpoints: up to 200 records per HTTP exchange, one
// DmlResult per input record, outcomes positionally correlated.
type CollectionsClient struct {
	httpClient *http.Client
	decoder    *recordDecoder
}

// NewCollectionsClient creates a new batched-DML client.
func NewCollectionsClient(httpClient *http.Client, decoder *recordDecoder) *CollectionsClient {
	return &CollectionsClient{httpClient: httpClient, decoder: decoder}
}

// collectionsBody is the wire shape of a Collections DML request.
type collectionsBody struct {
	AllOrNone bool                     `json:"allOrNone"`
	Records   []map[string]interface{} `json:"records"`
}

// Create implements sfapi.CollectionsClient.Create.
func (c *CollectionsClient) Create(ctx context.Context, records []sfapi.RecordAccessor, opts *sfapi.CollectionsOptions) ([]sfapi.DmlResult, error) {
	for _, record := range records {
		if _, hasID := record.RecordID(); hasID {
			return nil, sfapi.ErrRecordExists
		}
	}

	return c.dml(ctx, records, opts, func(group []sfapi.RecordAccessor, allOrNone bool) (*http.Request, error) {
		return &http.Request{
			Method: "POST",
			Path:   "composite/sobjects",
			Body:   encodeCollection(group, allOrNone, false),
		}, nil
	})
}

// Update implements sfapi.CollectionsClient.Update.
func (c *CollectionsClient) Update(ctx context.Context, records []sfapi.RecordAccessor, opts *sfapi.CollectionsOptions) ([]sfapi.DmlResult, error) {
	for _, record := range records {
		if _, hasID := record.RecordID(); !hasID {
			return nil, sfapi.ErrRecordDoesNotExist
		}
	}

	return c.dml(ctx, records, opts, func(group []sfapi.RecordAccessor, allOrNone bool) (*http.Request, error) {
		return &http.Request{
			Method: "PATCH",
			Path:   "composite/sobjects",
			Body:   encodeCollection(group, allOrNone, true),
		}, nil
	})
}

// Upsert implements sfapi.CollectionsClient.Upsert. The endpoint is typed,
// so the records must share one object type.
func (c *CollectionsClient) Upsert(ctx context.Context, records []sfapi.RecordAccessor, externalIDField string, opts *sfapi.CollectionsOptions) ([]sfapi.DmlResult, error) {
	if len(records) > 0 {
		objectType := records[0].ObjectType()
		for _, record := range records[1:] {
			if record.ObjectType() != objectType {
				return nil, sfapi.ErrMixedObjectTypes
			}
		}
	}

	return c.dml(ctx, records, opts, func(group []sfapi.RecordAccessor, allOrNone bool) (*http.Request, error) {
		return &http.Request{
			Method: "PATCH",
			Path:   "composite/sobjects/" + group[0].ObjectType() + "/" + externalIDField,
			Body:   encodeCollection(group, allOrNone, true),
		}, nil
	})
}

// Delete implements sfapi.CollectionsClient.Delete. IDs ride in the query
// string, comma-joined.
func (c *CollectionsClient) Delete(ctx context.Context, ids []sfapi.ID, opts *sfapi.CollectionsOptions) ([]sfapi.DmlResult, error) {
	if len(ids) == 0 {
		return nil, sfapi.ErrCollectionEmpty
	}

	allOrNone, batchSize, parallel := collectionsSettings(opts)

	groups := chunkSlice(ids, batchSize)
	results := make([]sfapi.DmlResult, len(ids))

	err := c.runGroups(ctx, len(groups), parallel, func(ctx context.Context, groupIdx int) error {
		group := groups[groupIdx]

		joined := make([]string, len(group))
		for i, id := range group {
			joined[i] = id.String()
		}

		resp, err := c.httpClient.Delete(ctx, "composite/sobjects", url.Values{
			"ids":       {strings.Join(joined, ",")},
			"allOrNone": {fmt.Sprintf("%t", allOrNone)},
		})
		if err != nil {
			return fmt.Errorf("deleting record collection: %w", err)
		}

		return decodeGroupResults(resp.Body, results, groupIdx*batchSize, len(group))
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Retrieve implements sfapi.CollectionsClient.Retrieve. Records the service
// could not find come back nil at their input position.
func (c *CollectionsClient) Retrieve(ctx context.Context, objectType string, ids []sfapi.ID, fields []string) ([]*sfapi.Record, error) {
	if len(ids) == 0 {
		return nil, sfapi.ErrCollectionEmpty
	}

	if len(ids) > sfapi.CollectionsBatchLimit {
		return nil, sfapi.ErrCollectionTooLarge
	}

	body := map[string]interface{}{
		"ids":    ids,
		"fields": fields,
	}

	resp, err := c.httpClient.Post(ctx, "composite/sobjects/"+objectType, body)
	if err != nil {
		return nil, fmt.Errorf("retrieving %s collection: %w", objectType, err)
	}

	var payloads []map[string]interface{}
	if err := resp.JSON(&payloads); err != nil {
		return nil, fmt.Errorf("parsing %s collection: %w", objectType, err)
	}

	if len(payloads) != len(ids) {
		return nil, &sfapi.ProtocolError{
			Message: fmt.Sprintf("retrieve returned %d results for %d ids", len(payloads), len(ids)),
		}
	}

	records := make([]*sfapi.Record, len(ids))

	for i, payload := range payloads {
		if payload == nil {
			continue
		}

		records[i], err = c.decoder.decode(ctx, objectType, payload)
		if err != nil {
			return nil, err
		}
	}

	return records, nil
}

// dml splits the records into groups, dispatches each group through build,
// and stitches the per-group outcomes back into one input-ordered slice.
func (c *CollectionsClient) dml(
	ctx context.Context,
	records []sfapi.RecordAccessor,
	opts *sfapi.CollectionsOptions,
	build func(group []sfapi.RecordAccessor, allOrNone bool) (*http.Request, error),
) ([]sfapi.DmlResult, error) {
	if len(records) == 0 {
		return nil, sfapi.ErrCollectionEmpty
	}

	allOrNone, batchSize, parallel := collectionsSettings(opts)

	groups := chunkSlice(records, batchSize)
	results := make([]sfapi.DmlResult, len(records))

	err := c.runGroups(ctx, len(groups), parallel, func(ctx context.Context, groupIdx int) error {
		group := groups[groupIdx]

		req, err := build(group, allOrNone)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(ctx, req)
		if err != nil {
			return fmt.Errorf("dispatching record collection: %w", err)
		}

		return decodeGroupResults(resp.Body, results, groupIdx*batchSize, len(group))
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// runGroups executes fn per group, sequentially or through a bounded
// errgroup. Every group writes a disjoint slice of the result, so no
// locking is needed; the first failing group cancels the rest.
func (c *CollectionsClient) runGroups(ctx context.Context, groups, parallel int, fn func(ctx context.Context, groupIdx int) error) error {
	if parallel <= 1 || groups == 1 {
		for i := 0; i < groups; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}

		return nil
	}

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)

	for i := 0; i < groups; i++ {
		i := i
		eg.Go(func() error {
			return fn(groupCtx, i)
		})
	}

	return eg.Wait()
}

func collectionsSettings(opts *sfapi.CollectionsOptions) (allOrNone bool, batchSize, parallel int) {
	batchSize = sfapi.CollectionsBatchLimit

	if opts == nil {
		return false, batchSize, 1
	}

	if opts.BatchSize > 0 && opts.BatchSize < sfapi.CollectionsBatchLimit {
		batchSize = opts.BatchSize
	}

	return opts.AllOrNone, batchSize, opts.Parallel
}

func encodeCollection(records []sfapi.RecordAccessor, allOrNone, includeID bool) collectionsBody {
	encoded := make([]map[string]interface{}, len(records))
	for i, record := range records {
		encoded[i] = sfapi.MarshalFields(record, true, includeID)
	}

	return collectionsBody{AllOrNone: allOrNone, Records: encoded}
}

// decodeGroupResults decodes one group's outcome array into its slot of the
// full result slice, enforcing the one-outcome-per-record contract.
func decodeGroupResults(body []byte, results []sfapi.DmlResult, offset, expected int) error {
	var group []sfapi.DmlResult
	if err := json.Unmarshal(body, &group); err != nil {
		return fmt.Errorf("parsing collection outcomes: %w", err)
	}

	if len(group) != expected {
		return &sfapi.ProtocolError{
			Message: fmt.Sprintf("collection call returned %d outcomes for %d records", len(group), expected),
		}
	}

	copy(results[offset:], group)

	return nil
}

// chunkSlice splits items into consecutive groups of at most size.
func chunkSlice[T any](items []T, size int) [][]T {
	groups := make([][]T, 0, (len(items)+size-1)/size)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end])
	}

	return groups
}
