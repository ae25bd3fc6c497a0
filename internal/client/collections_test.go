package client

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAccounts(n int) []sfapi.RecordAccessor {
	records := make([]sfapi.RecordAccessor, n)
	for i := 0; i < n; i++ {
		records[i] = sfapi.NewRecord("Account").WithString("Name", fmt.Sprintf("Acme %d", i))
	}

	return records
}

func collectionOutcomes(count, offset int) []map[string]interface{} {
	outcomes := make([]map[string]interface{}, count)
	for i := 0; i < count; i++ {
		outcomes[i] = map[string]interface{}{
			"id":      sfapi.MustParseID(fmt.Sprintf("001A00000%06d", offset+i)).String(),
			"success": true,
		}
	}

	return outcomes
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestCollectionsClient_Create(t *testing.T) {
	t.Parallel()

	t.Run("single group", func(t *testing.T) {
		t.Parallel()

		mux := nethttp.NewServeMux()
		mux.HandleFunc("/composite/sobjects", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			assert.Equal(t, "POST", r.Method)

			var body struct {
				AllOrNone bool                     `json:"allOrNone"`
				Records   []map[string]interface{} `json:"records"`
			}

			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, body.AllOrNone)
			require.Len(t, body.Records, 2)

			// Collections bodies carry the attributes envelope.
			attrs, ok := body.Records[0]["attributes"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "Account", attrs["type"])

			writeJSON(t, w, nethttp.StatusOK, collectionOutcomes(2, 0))
		})

		client := newTestServer(t, mux)

		results, err := client.Collections().Create(context.Background(), makeAccounts(2),
			&sfapi.CollectionsOptions{AllOrNone: true})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].Success)
	})

	t.Run("splits past the batch limit and correlates outcomes", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64

		mux := nethttp.NewServeMux()
		mux.HandleFunc("/composite/sobjects", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			call := calls.Add(1)

			var body struct {
				Records []map[string]interface{} `json:"records"`
			}

			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			// 437 records split 200/200/37 in order.
			switch call {
			case 1, 2:
				assert.Len(t, body.Records, 200)
			case 3:
				assert.Len(t, body.Records, 37)
			}

			writeJSON(t, w, nethttp.StatusOK, collectionOutcomes(len(body.Records), 0))
		})

		client := newTestServer(t, mux)

		results, err := client.Collections().Create(context.Background(), makeAccounts(437), nil)
		require.NoError(t, err)
		assert.Len(t, results, 437)
		assert.Equal(t, int64(3), calls.Load())
	})

	t.Run("parallel groups keep input order", func(t *testing.T) {
		t.Parallel()

		mux := nethttp.NewServeMux()
		mux.HandleFunc("/composite/sobjects", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			var body struct {
				Records []map[string]interface{} `json:"records"`
			}

			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			// Echo each record's name back through the error message so the
			// caller-side ordering is observable.
			outcomes := make([]map[string]interface{}, len(body.Records))
			for i, record := range body.Records {
				outcomes[i] = map[string]interface{}{
					"success": false,
					"errors": []map[string]interface{}{
						{"message": record["Name"], "statusCode": "ECHO"},
					},
				}
			}

			writeJSON(t, w, nethttp.StatusOK, outcomes)
		})

		client := newTestServer(t, mux)

		results, err := client.Collections().Create(context.Background(), makeAccounts(450),
			&sfapi.CollectionsOptions{BatchSize: 100, Parallel: 4})
		require.NoError(t, err)
		require.Len(t, results, 450)

		for i, result := range results {
			require.Len(t, result.Errors, 1)
			assert.Equal(t, fmt.Sprintf("Acme %d", i), result.Errors[0].Message)
		}
	})

	t.Run("empty collection", func(t *testing.T) {
		t.Parallel()

		client := newTestServer(t, nethttp.NewServeMux())

		_, err := client.Collections().Create(context.Background(), nil, nil)
		assert.ErrorIs(t, err, sfapi.ErrCollectionEmpty)
	})

	t.Run("record with ID is rejected", func(t *testing.T) {
		t.Parallel()

		client := newTestServer(t, nethttp.NewServeMux())

		record := sfapi.NewRecord("Account").WithString("Name", "Acme")
		record.SetID(sfapi.MustParseID("001A0000006Vm9r"))

		_, err := client.Collections().Create(context.Background(), []sfapi.RecordAccessor{record}, nil)
		assert.ErrorIs(t, err, sfapi.ErrRecordExists)
	})

	t.Run("outcome count mismatch is a protocol error", func(t *testing.T) {
		t.Parallel()

		mux := nethttp.NewServeMux()
		mux.HandleFunc("/composite/sobjects", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			writeJSON(t, w, nethttp.StatusOK, collectionOutcomes(1, 0))
		})

		client := newTestServer(t, mux)

		_, err := client.Collections().Create(context.Background(), makeAccounts(3), nil)
		require.Error(t, err)

		protoErr := &sfapi.ProtocolError{}
		assert.ErrorAs(t, err, &protoErr)
	})
}

func TestCollectionsClient_Update(t *testing.T) {
	t.Parallel()

	mux := nethttp.NewServeMux()
	mux.HandleFunc("/composite/sobjects", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "PATCH", r.Method)

		var body struct {
			Records []map[string]interface{} `json:"records"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		// Updates carry the Id in the record body.
		assert.Equal(t, "001A0000006Vm9rIAC", body.Records[0]["Id"])

		writeJSON(t, w, nethttp.StatusOK, collectionOutcomes(1, 0))
	})

	client := newTestServer(t, mux)

	record := sfapi.NewRecord("Account").WithString("Name", "Acme Corp")
	record.SetID(sfapi.MustParseID("001A0000006Vm9r"))

	results, err := client.Collections().Update(context.Background(), []sfapi.RecordAccessor{record}, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Updating a record without an ID never reaches the wire.
	_, err = client.Collections().Update(context.Background(), makeAccounts(1), nil)
	assert.ErrorIs(t, err, sfapi.ErrRecordDoesNotExist)
}

func TestCollectionsClient_Upsert(t *testing.T) {
	t.Parallel()

	mux := nethttp.NewServeMux()
	mux.HandleFunc("/composite/sobjects/Account/Slug__c", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "PATCH", r.Method)
		writeJSON(t, w, nethttp.StatusOK, collectionOutcomes(2, 0))
	})

	client := newTestServer(t, mux)

	records := []sfapi.RecordAccessor{
		sfapi.NewRecord("Account").WithString("Slug__c", "a").WithString("Name", "A"),
		sfapi.NewRecord("Account").WithString("Slug__c", "b").WithString("Name", "B"),
	}

	results, err := client.Collections().Upsert(context.Background(), records, "Slug__c", nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// The upsert endpoint is typed; mixed collections are rejected locally.
	mixed := append(records[:1:1], sfapi.NewRecord("Contact").WithString("Slug__c", "c"))

	_, err = client.Collections().Upsert(context.Background(), mixed, "Slug__c", nil)
	assert.ErrorIs(t, err, sfapi.ErrMixedObjectTypes)
}

func TestCollectionsClient_Delete(t *testing.T) {
	t.Parallel()

	ids := []sfapi.ID{
		sfapi.MustParseID("001A0000006Vm9r"),
		sfapi.MustParseID("001A0000006Vm9s"),
	}

	mux := nethttp.NewServeMux()
	mux.HandleFunc("/composite/sobjects", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "false", r.URL.Query().Get("allOrNone"))

		joined := r.URL.Query().Get("ids")
		assert.Equal(t, ids[0].String()+","+ids[1].String(), joined)
		assert.Len(t, strings.Split(joined, ","), 2)

		writeJSON(t, w, nethttp.StatusOK, collectionOutcomes(2, 0))
	})

	client := newTestServer(t, mux)

	results, err := client.Collections().Delete(context.Background(), ids, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCollectionsClient_Retrieve(t *testing.T) {
	t.Parallel()

	ids := []sfapi.ID{
		sfapi.MustParseID("001A0000006Vm9r"),
		sfapi.MustParseID("001A0000006Vm9s"),
	}

	mux := nethttp.NewServeMux()
	serveAccountDescribe(t, mux)
	mux.HandleFunc("/composite/sobjects/Account", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		assert.Equal(t, "POST", r.Method)

		var body struct {
			IDs    []string `json:"ids"`
			Fields []string `json:"fields"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.IDs, 2)
		assert.Equal(t, []string{"Name"}, body.Fields)

		// The second record does not exist: null at its position.
		writeJSON(t, w, nethttp.StatusOK, []interface{}{
			map[string]interface{}{
				"attributes": map[string]string{"type": "Account"},
				"Id":         ids[0].String(),
				"Name":       "Acme",
			},
			nil,
		})
	})

	client := newTestServer(t, mux)

	records, err := client.Collections().Retrieve(context.Background(), "Account", ids, []string{"Name"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0])
	assert.Equal(t, "Acme", records[0].Field("Name").StringValue())
	assert.Nil(t, records[1])
}

func TestCollectionsClient_RetrieveLimits(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, nethttp.NewServeMux())

	_, err := client.Collections().Retrieve(context.Background(), "Account", nil, nil)
	assert.ErrorIs(t, err, sfapi.ErrCollectionEmpty)

	tooMany := make([]sfapi.ID, sfapi.CollectionsBatchLimit+1)
	for i := range tooMany {
		tooMany[i] = sfapi.MustParseID(fmt.Sprintf("001A00000%06d", i))
	}

	_, err = client.Collections().Retrieve(context.Background(), "Account", tooMany, nil)
	assert.ErrorIs(t, err, sfapi.ErrCollectionTooLarge)
}
