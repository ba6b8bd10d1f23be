package infiniteq

import (
	"errors"
	"fmt"
)

// FetchFailed carries whatever error the data source surfaced for a range
// fetch: network failure, permission denial or a malformed query.
type FetchFailed struct {
	Range Range
	Err   error
}

func (e *FetchFailed) Error() string {
	return fmt.Sprintf("fetch [%d,%d) failed: %v", e.Range.Start, e.Range.End, e.Err)
}

func (e *FetchFailed) Unwrap() error {
	return e.Err
}

// asFetchFailed wraps err into *FetchFailed unless it already is one.
func asFetchFailed(r Range, err error) *FetchFailed {
	var ff *FetchFailed
	if errors.As(err, &ff) {
		return ff
	}

	return &FetchFailed{Range: r, Err: err}
}
