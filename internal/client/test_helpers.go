package client

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/sfapi/internal/auth"
	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// newTestServer starts an API stub under the versioned data root and
// returns a Client wired to it. The mux sees paths relative to
// /services/data/v55.0.
func newTestServer(t *testing.T, mux *nethttp.ServeMux) *Client {
	t.Helper()

	root := nethttp.NewServeMux()
	root.Handle("/services/data/v55.0/", nethttp.StripPrefix("/services/data/v55.0", mux))

	server := httptest.NewServer(root)
	t.Cleanup(server.Close)

	manager := auth.NewManager(&auth.StaticSource{
		AccessToken: "test-token",
		InstanceURL: server.URL,
	}, nil)

	return New(http.NewClient(manager), nil)
}

// writeJSON writes v as a JSON response.
func writeJSON(t *testing.T, w nethttp.ResponseWriter, status int, v interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		t.Fatalf("encoding test response: %v", err)
	}
}

// accountDescribe is a minimal describe payload for the Account type.
func accountDescribe() *sfapi.ObjectDescribe {
	return &sfapi.ObjectDescribe{
		Name:       "Account",
		Label:      "Account",
		Createable: true,
		Updateable: true,
		Deletable:  true,
		Queryable:  true,
		KeyPrefix:  "001",
		Fields: []sfapi.FieldDescribe{
			{Name: "Id", SoapType: "tns:ID", Type: "id"},
			{Name: "Name", SoapType: "xsd:string", Type: "string", Createable: true, Updateable: true},
			{Name: "NumberOfEmployees", SoapType: "xsd:int", Type: "int", Createable: true, Updateable: true, Nillable: true},
			{Name: "AnnualRevenue", SoapType: "xsd:double", Type: "currency", Createable: true, Updateable: true, Nillable: true},
			{Name: "IsDeleted", SoapType: "xsd:boolean", Type: "boolean"},
			{Name: "CreatedDate", SoapType: "xsd:dateTime", Type: "datetime"},
			{Name: "Slug__c", SoapType: "xsd:string", Type: "string", Createable: true, Updateable: true, ExternalID: true},
		},
	}
}

// serveAccountDescribe registers the Account describe endpoint on mux.
func serveAccountDescribe(t *testing.T, mux *nethttp.ServeMux) {
	t.Helper()

	mux.HandleFunc("/sobjects/Account/describe", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		writeJSON(t, w, nethttp.StatusOK, accountDescribe())
	})
}
