// Package sfclient provides the primary entry point for constructing a
// Salesforce object-data API client that implements the sfapi.Client
// interface.
//
// It layers configuration, HTTP transport, and authentication on top of the
// data model and client interfaces defined in the sfapi package. Most
// applications should import sfclient to build a client, then use the
// returned sfapi.Client to reach the per-transport clients: Records(),
// Collections(), Composite(), Query(), Bulk(), and Describes().
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/sfapi/pkg/sfapi"
//	  "github.com/fivetwenty-io/sfapi/pkg/sfclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := sfclient.New(&sfapi.Config{
//	    LoginURL:      "https://login.salesforce.com",
//	    ClientID:      "connected-app-id",
//	    ClientSecret:  "connected-app-secret",
//	    Username:      "user@example.com",
//	    Password:      "password",
//	    SecurityToken: "token",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  account := sfapi.NewRecord("Account").WithString("Name", "Acme")
//
//	  result, err := cli.Records().Create(ctx, account)
//	  if err != nil { log.Fatal(err) }
//	  _ = result.ID
//	}
//
// When several credential kinds are set at once, a static AccessToken wins,
// then a RefreshToken, then Username/Password. Flows the Config cannot
// express plug in through NewWithSource.
package sfclient
