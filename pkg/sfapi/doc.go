// Package sfapi defines the public types of the Salesforce API client:
// the Record data model, canonical 18-character IDs, the tagged Value
// union, client interfaces for every transport, and the error taxonomy.
//
// Construct a working client with the sfclient package; this package
// carries no transport code of its own.
package sfapi
