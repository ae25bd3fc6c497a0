package client

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// BulkClient implements sfapi.BulkClient, driving the asynchronous ingest
// and export job state machines. The job handle passed in is updated in
// place as its server-side state advances.
type BulkClient struct {
	httpClient *http.Client
	logger     sfapi.Logger
}

// NewBulkClient creates a new bulk job client.
func NewBulkClient(httpClient *http.Client, logger sfapi.Logger) *BulkClient {
	return &BulkClient{httpClient: httpClient, logger: logger}
}

// exhaustedLocator is the literal the service sends in Sforce-Locator when
// an export job's output is fully consumed.
const exhaustedLocator = "null"

func jobPath(job *sfapi.BulkJob) string {
	if job.Operation.IsQuery() {
		return "jobs/query/" + job.ID.String()
	}

	return "jobs/ingest/" + job.ID.String()
}

// CreateJob implements sfapi.BulkClient.CreateJob.
func (c *BulkClient) CreateJob(ctx context.Context, objectType string, operation sfapi.BulkOperation, opts *sfapi.BulkJobOptions) (*sfapi.BulkJob, error) {
	body := map[string]interface{}{
		"object":      objectType,
		"operation":   operation,
		"contentType": "CSV",
		"lineEnding":  "LF",
	}

	if opts != nil && opts.ExternalIDFieldName != "" {
		body["externalIdFieldName"] = opts.ExternalIDFieldName
	}

	resp, err := c.httpClient.Post(ctx, "jobs/ingest", body)
	if err != nil {
		return nil, fmt.Errorf("creating bulk %s job: %w", operation, err)
	}

	var job sfapi.BulkJob
	if err := resp.JSON(&job); err != nil {
		return nil, fmt.Errorf("parsing bulk job: %w", err)
	}

	c.logger.Info("bulk job created", map[string]interface{}{
		"job_id":    job.ID.String(),
		"object":    job.Object,
		"operation": string(job.Operation),
	})

	return &job, nil
}

// Upload implements sfapi.BulkClient.Upload.
func (c *BulkClient) Upload(ctx context.Context, job *sfapi.BulkJob, data []byte) error {
	if job.State != sfapi.BulkJobOpen {
		return &sfapi.InvalidStateError{Op: "upload to", State: job.State}
	}

	_, err := c.httpClient.Put(ctx, "jobs/ingest/"+job.ID.String()+"/batches", "text/csv", data)
	if err != nil {
		return fmt.Errorf("uploading bulk job data: %w", err)
	}

	return nil
}

// UploadRecords implements sfapi.BulkClient.UploadRecords: the records are
// CSV-encoded with one column per distinct field, in first-appearance
// order, and uploaded as one chunk.
func (c *BulkClient) UploadRecords(ctx context.Context, job *sfapi.BulkJob, records []sfapi.RecordAccessor) error {
	if len(records) == 0 {
		return sfapi.ErrCollectionEmpty
	}

	data, err := encodeRecordsCSV(records)
	if err != nil {
		return err
	}

	return c.Upload(ctx, job, data)
}

// Close implements sfapi.BulkClient.Close. Closing a job already past Open
// is a no-op, so retrying a partially failed orchestration is safe.
func (c *BulkClient) Close(ctx context.Context, job *sfapi.BulkJob) error {
	if job.Operation.IsQuery() {
		return &sfapi.InvalidStateError{Op: "close", State: job.State}
	}

	if job.State != sfapi.BulkJobOpen {
		return nil
	}

	return c.transition(ctx, job, sfapi.BulkJobUploadComplete)
}

// Abort implements sfapi.BulkClient.Abort.
func (c *BulkClient) Abort(ctx context.Context, job *sfapi.BulkJob) error {
	if !job.State.Precedes(sfapi.BulkJobAborted) {
		return &sfapi.InvalidStateError{Op: "abort", State: job.State}
	}

	return c.transition(ctx, job, sfapi.BulkJobAborted)
}

func (c *BulkClient) transition(ctx context.Context, job *sfapi.BulkJob, next sfapi.BulkJobState) error {
	resp, err := c.httpClient.Patch(ctx, jobPath(job), map[string]interface{}{"state": next})
	if err != nil {
		return fmt.Errorf("moving bulk job to %s: %w", next, err)
	}

	var updated sfapi.BulkJob
	if err := resp.JSON(&updated); err == nil && updated.State != "" {
		job.State = updated.State
	} else {
		job.State = next
	}

	return nil
}

// Poll implements sfapi.BulkClient.Poll: one status check, updating the
// handle. A state moving backwards violates the job lifecycle and reports
// as a ProtocolError.
func (c *BulkClient) Poll(ctx context.Context, job *sfapi.BulkJob) (sfapi.BulkJobState, error) {
	resp, err := c.httpClient.Get(ctx, jobPath(job), nil)
	if err != nil {
		return job.State, fmt.Errorf("polling bulk job: %w", err)
	}

	var updated sfapi.BulkJob
	if err := resp.JSON(&updated); err != nil {
		return job.State, fmt.Errorf("parsing bulk job status: %w", err)
	}

	if !job.State.Precedes(updated.State) {
		return job.State, &sfapi.ProtocolError{
			Message: fmt.Sprintf("bulk job state moved backwards from %s to %s", job.State, updated.State),
		}
	}

	job.State = updated.State
	job.NumberRecordsProcessed = updated.NumberRecordsProcessed
	job.NumberRecordsFailed = updated.NumberRecordsFailed
	job.ErrorMessage = updated.ErrorMessage

	return job.State, nil
}

// Wait implements sfapi.BulkClient.Wait: polls on the interval until the
// job reaches a terminal state. Transient network failures back off
// exponentially instead of aborting the wait; every other failure is final.
func (c *BulkClient) Wait(ctx context.Context, job *sfapi.BulkJob, interval time.Duration) (sfapi.BulkJobState, error) {
	if interval <= 0 {
		interval = constants.DefaultBulkPollInterval
	}

	retry := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	for {
		state, err := c.Poll(ctx, job)

		switch {
		case err == nil:
			retry.Reset()
		case isNetworkError(err):
			next := retry.NextBackOff()
			if next == backoff.Stop {
				return job.State, err
			}

			c.logger.Warn("bulk job poll failed, backing off", map[string]interface{}{
				"job_id": job.ID.String(),
				"error":  err.Error(),
			})

			if sleepErr := sleepCtx(ctx, next); sleepErr != nil {
				return job.State, sleepErr
			}

			continue
		default:
			return job.State, err
		}

		if state.IsTerminal() {
			return state, nil
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return job.State, err
		}
	}
}

func isNetworkError(err error) bool {
	netErr := &sfapi.NetworkError{}

	return errors.As(err, &netErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Results implements sfapi.BulkClient.Results: the three disjoint outcome
// partitions of a finished ingest job. An aborted job has no partitions.
func (c *BulkClient) Results(ctx context.Context, job *sfapi.BulkJob) (*sfapi.BulkResults, error) {
	if job.State != sfapi.BulkJobComplete && job.State != sfapi.BulkJobFailed {
		return nil, &sfapi.InvalidStateError{Op: "read results of", State: job.State}
	}

	base := "jobs/ingest/" + job.ID.String()

	successful, err := c.fetchOutcomeRows(ctx, base+"/successfulResults")
	if err != nil {
		return nil, err
	}

	failed, err := c.fetchOutcomeRows(ctx, base+"/failedResults")
	if err != nil {
		return nil, err
	}

	unprocessedRows, err := c.fetchCSV(ctx, base+"/unprocessedrecords")
	if err != nil {
		return nil, err
	}

	results := &sfapi.BulkResults{}

	for _, row := range successful {
		results.Successful = append(results.Successful, successRow(row))
	}

	for _, row := range failed {
		results.Failed = append(results.Failed, failureRow(row))
	}

	for _, row := range unprocessedRows {
		results.Unprocessed = append(results.Unprocessed, unprocessedRecord(job.Object, row))
	}

	return results, nil
}

// CreateQueryJob implements sfapi.BulkClient.CreateQueryJob.
func (c *BulkClient) CreateQueryJob(ctx context.Context, soql string, queryAll bool) (*sfapi.BulkJob, error) {
	operation := sfapi.BulkQuery
	if queryAll {
		operation = sfapi.BulkQueryAll
	}

	resp, err := c.httpClient.Post(ctx, "jobs/query", map[string]interface{}{
		"operation": operation,
		"query":     soql,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bulk query job: %w", err)
	}

	var job sfapi.BulkJob
	if err := resp.JSON(&job); err != nil {
		return nil, fmt.Errorf("parsing bulk query job: %w", err)
	}

	return &job, nil
}

// QueryResults implements sfapi.BulkClient.QueryResults. An empty returned
// locator means the output is exhausted.
func (c *BulkClient) QueryResults(ctx context.Context, jobID sfapi.ID, locator string, maxRecords int) (*sfapi.BulkQueryPage, error) {
	query := url.Values{}

	if locator != "" {
		query.Set("locator", locator)
	}

	if maxRecords > 0 {
		query.Set("maxRecords", strconv.Itoa(maxRecords))
	}

	resp, err := c.httpClient.Get(ctx, "jobs/query/"+jobID.String()+"/results", query)
	if err != nil {
		return nil, fmt.Errorf("reading bulk query results: %w", err)
	}

	next := resp.Headers.Get("Sforce-Locator")
	if next == exhaustedLocator {
		next = ""
	}

	return &sfapi.BulkQueryPage{Data: resp.Body, Locator: next}, nil
}

// CSV plumbing.

// encodeRecordsCSV renders records as the delimited text the ingest
// endpoint accepts. The header is the union of field names across all
// records, in first-appearance order; records missing a column emit an
// empty cell.
func encodeRecordsCSV(records []sfapi.RecordAccessor) ([]byte, error) {
	var columns []string

	seen := make(map[string]struct{})

	for _, record := range records {
		for _, name := range record.FieldNames() {
			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}
			columns = append(columns, name)
		}
	}

	var buf bytes.Buffer

	writer := csv.NewWriter(&buf)
	writer.UseCRLF = false

	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("encoding CSV header: %w", err)
	}

	row := make([]string, len(columns))

	for _, record := range records {
		for i, column := range columns {
			row[i] = record.Field(column).AsString()
		}

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("encoding CSV row: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("encoding CSV: %w", err)
	}

	return buf.Bytes(), nil
}

// csvRow is one data row keyed by header column.
type csvRow map[string]string

func (c *BulkClient) fetchOutcomeRows(ctx context.Context, path string) ([]csvRow, error) {
	return c.fetchCSV(ctx, path)
}

func (c *BulkClient) fetchCSV(ctx context.Context, path string) ([]csvRow, error) {
	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching bulk results: %w", err)
	}

	return parseCSVRows(resp.Body)
}

func parseCSVRows(data []byte) ([]csvRow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("parsing bulk results header: %w", err)
	}

	var rows []csvRow

	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parsing bulk results row: %w", err)
		}

		row := make(csvRow, len(header))
		for i, column := range header {
			if i < len(fields) {
				row[column] = fields[i]
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// Outcome columns the service prepends to result rows.
const (
	columnID      = "sf__Id"
	columnCreated = "sf__Created"
	columnError   = "sf__Error"
)

func successRow(row csvRow) sfapi.DmlResult {
	result := sfapi.DmlResult{Success: true}

	if id, err := sfapi.ParseID(row[columnID]); err == nil {
		result.ID = &id
	}

	created := strings.EqualFold(row[columnCreated], "true")
	result.Created = &created

	return result
}

func failureRow(row csvRow) sfapi.DmlResult {
	result := sfapi.DmlResult{
		Success: false,
		Errors:  []sfapi.DmlError{{Message: row[columnError]}},
	}

	if code, _, found := strings.Cut(row[columnError], ":"); found {
		result.Errors[0].StatusCode = strings.TrimSpace(code)
	}

	if id, err := sfapi.ParseID(row[columnID]); err == nil {
		result.ID = &id
	}

	return result
}

// unprocessedRecord rebuilds a submitted record from an unprocessed row.
// Cell values come back as strings; the original kinds are not recoverable
// from delimited text.
func unprocessedRecord(objectType string, row csvRow) *sfapi.Record {
	record := sfapi.NewRecord(objectType)

	for column, value := range row {
		if strings.HasPrefix(column, "sf__") {
			continue
		}

		if value == "" {
			record.SetField(column, sfapi.Null())

			continue
		}

		record.SetField(column, sfapi.String(value))
	}

	return record
}
