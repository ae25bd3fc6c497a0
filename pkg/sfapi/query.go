package sfapi

import (
	"context"
	"errors"
)

// QueryPage is one decoded page of query results plus the continuation
// cursor for the next one. The cursor is only valid for the same query and
// session.
type QueryPage struct {
	Records []*Record
	Done    bool
	Cursor  string
}

// QueryPager fetches the page behind a continuation cursor. Implemented by
// the query transport client.
type QueryPager interface {
	NextPage(ctx context.Context, cursor string) (*QueryPage, error)
}

// RecordIterator lazily walks a query's records across server-side pages.
// The next page is fetched only when the consumer asks for a record past
// the current page's end, so abandoning the iterator issues no further
// calls. A single iterator is not restartable; re-run the query for a
// fresh one.
//
// An iterator is single-consumer. Independent iterators over the same
// client may progress concurrently.
type RecordIterator struct {
	ctx    context.Context
	pager  QueryPager
	buffer []*Record
	pos    int
	cursor string
	done   bool
	failed error
	total  int
}

// NewRecordIterator builds an iterator from a query's first page. The
// context bounds every subsequent page fetch.
func NewRecordIterator(ctx context.Context, pager QueryPager, first *QueryPage, totalSize int) *RecordIterator {
	return &RecordIterator{
		ctx:    ctx,
		pager:  pager,
		buffer: first.Records,
		cursor: first.Cursor,
		done:   first.Done,
		total:  totalSize,
	}
}

// TotalSize is the server-reported total number of records in the result
// set, available before iteration.
func (it *RecordIterator) TotalSize() int {
	return it.total
}

// HasNext reports whether another record is available without fetching.
func (it *RecordIterator) HasNext() bool {
	if it.failed != nil {
		return false
	}

	return it.pos < len(it.buffer) || !it.done
}

// Next returns the next record. It fetches the following page exactly when
// the current one is exhausted. A page-fetch failure terminates the
// sequence: the error is returned here and the iterator yields nothing
// further. ErrIteratorExhausted signals normal completion.
func (it *RecordIterator) Next() (*Record, error) {
	if it.failed != nil {
		return nil, it.failed
	}

	if it.pos >= len(it.buffer) {
		if it.done {
			return nil, ErrIteratorExhausted
		}

		page, err := it.pager.NextPage(it.ctx, it.cursor)
		if err != nil {
			it.failed = err

			return nil, err
		}

		it.buffer = page.Records
		it.pos = 0
		it.cursor = page.Cursor
		it.done = page.Done

		if len(it.buffer) == 0 {
			if it.done {
				return nil, ErrIteratorExhausted
			}

			it.failed = &ProtocolError{Message: "query page is empty but not done"}

			return nil, it.failed
		}
	}

	rec := it.buffer[it.pos]
	it.pos++

	return rec, nil
}

// All drains the iterator into a slice. Prefer Next for large result sets;
// All materializes everything.
func (it *RecordIterator) All() ([]*Record, error) {
	var out []*Record

	for {
		rec, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrIteratorExhausted) {
				return out, nil
			}

			return out, err
		}

		out = append(out, rec)
	}
}
