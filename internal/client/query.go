package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// QueryClient implements sfapi.QueryClient, exposing query results as lazy
// record streams. It also serves as the pager behind every iterator it
// hands out.
type QueryClient struct {
	httpClient *http.Client
	decoder    *recordDecoder
}

// NewQueryClient creates a new query client.
func NewQueryClient(httpClient *http.Client, decoder *recordDecoder) *QueryClient {
	return &QueryClient{httpClient: httpClient, decoder: decoder}
}

// Query implements sfapi.QueryClient.Query.
func (c *QueryClient) Query(ctx context.Context, soql string) (*sfapi.RecordIterator, error) {
	return c.run(ctx, "query", soql)
}

// QueryAll implements sfapi.QueryClient.QueryAll, including archived and
// soft-deleted records.
func (c *QueryClient) QueryAll(ctx context.Context, soql string) (*sfapi.RecordIterator, error) {
	return c.run(ctx, "queryAll", soql)
}

// Count implements sfapi.QueryClient.Count.
func (c *QueryClient) Count(ctx context.Context, soql string) (int, error) {
	result, err := c.fetch(ctx, "query", url.Values{"q": {soql}})
	if err != nil {
		return 0, err
	}

	return result.TotalSize, nil
}

func (c *QueryClient) run(ctx context.Context, endpoint, soql string) (*sfapi.RecordIterator, error) {
	result, err := c.fetch(ctx, endpoint, url.Values{"q": {soql}})
	if err != nil {
		return nil, err
	}

	page, err := c.decodePage(ctx, result)
	if err != nil {
		return nil, err
	}

	return sfapi.NewRecordIterator(ctx, c, page, result.TotalSize), nil
}

// NextPage implements sfapi.QueryPager. The cursor is the server-issued
// nextRecordsUrl, an absolute path on the instance.
func (c *QueryClient) NextPage(ctx context.Context, cursor string) (*sfapi.QueryPage, error) {
	result, err := c.fetchPath(ctx, cursor, nil)
	if err != nil {
		return nil, err
	}

	return c.decodePage(ctx, result)
}

func (c *QueryClient) fetch(ctx context.Context, endpoint string, query url.Values) (*sfapi.QueryResult, error) {
	return c.fetchPath(ctx, endpoint, query)
}

func (c *QueryClient) fetchPath(ctx context.Context, path string, query url.Values) (*sfapi.QueryResult, error) {
	resp, err := c.httpClient.Get(ctx, path, query)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	var result sfapi.QueryResult
	if err := resp.JSON(&result); err != nil {
		return nil, fmt.Errorf("parsing query response: %w", err)
	}

	return &result, nil
}

func (c *QueryClient) decodePage(ctx context.Context, result *sfapi.QueryResult) (*sfapi.QueryPage, error) {
	records := make([]*sfapi.Record, 0, len(result.Records))

	for _, raw := range result.Records {
		var payload map[string]interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("parsing query record: %w", err)
		}

		record, err := c.decoder.decodeOne(ctx, payload)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return &sfapi.QueryPage{
		Records: records,
		Done:    result.Done,
		Cursor:  result.NextRecordsURL,
	}, nil
}
