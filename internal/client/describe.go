package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// DescribesClient implements sfapi.DescribeClient. Describe results are
// fetched on first reference and cached until explicitly invalidated;
// cached entries are shared read-only and must not be mutated by callers.
type DescribesClient struct {
	httpClient *http.Client

	mutex sync.RWMutex
	cache map[string]*sfapi.ObjectDescribe
}

// NewDescribesClient creates a new schema metadata client.
func NewDescribesClient(httpClient *http.Client) *DescribesClient {
	return &DescribesClient{
		httpClient: httpClient,
		cache:      make(map[string]*sfapi.ObjectDescribe),
	}
}

// Describe implements sfapi.DescribeClient.Describe.
func (c *DescribesClient) Describe(ctx context.Context, objectType string) (*sfapi.ObjectDescribe, error) {
	key := strings.ToLower(objectType)

	c.mutex.RLock()
	cached, ok := c.cache[key]
	c.mutex.RUnlock()

	if ok {
		return cached, nil
	}

	resp, err := c.httpClient.Get(ctx, "sobjects/"+objectType+"/describe", nil)
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", objectType, err)
	}

	var describe sfapi.ObjectDescribe
	if err := resp.JSON(&describe); err != nil {
		return nil, fmt.Errorf("parsing %s describe: %w", objectType, err)
	}

	// A concurrent fetch of the same type may have won the race; either
	// result is equally valid, last write stands.
	c.mutex.Lock()
	c.cache[key] = &describe
	c.mutex.Unlock()

	return &describe, nil
}

// Invalidate implements sfapi.DescribeClient.Invalidate.
func (c *DescribesClient) Invalidate(objectType string) {
	c.mutex.Lock()
	delete(c.cache, strings.ToLower(objectType))
	c.mutex.Unlock()
}

// InvalidateAll implements sfapi.DescribeClient.InvalidateAll.
func (c *DescribesClient) InvalidateAll() {
	c.mutex.Lock()
	c.cache = make(map[string]*sfapi.ObjectDescribe)
	c.mutex.Unlock()
}
