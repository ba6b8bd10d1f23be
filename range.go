package infiniteq

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

var _encoder = base64.RawURLEncoding

var ErrInvalidRange = errors.New("invalid range")

// Range is a half-open interval [Start, End) of row offsets within the ordered
// result set.
type Range struct {
	Start int
	End   int
}

// NewRange returns the range of size rows starting at start.
func NewRange(start, size int) Range {
	return Range{Start: start, End: start + size}
}

// DecodeRange parses a token produced by Range.String into a range of the
// given size. An empty token means the beginning of the dataset.
func DecodeRange(b64String string, size int) (Range, error) {
	if len(b64String) == 0 {
		return NewRange(0, size), nil
	}

	offsetBytes, err := _encoder.DecodeString(b64String)
	if err != nil {
		return Range{}, fmt.Errorf("failed to decode base64 encoded range: %w", err)
	}

	offset, err := strconv.Atoi(string(offsetBytes))
	if err != nil {
		return Range{}, fmt.Errorf("failed to decode range offset value: %w", err)
	}

	if offset < 0 {
		return Range{}, fmt.Errorf("%w: negative offset %d", ErrInvalidRange, offset)
	}

	return NewRange(offset, size), nil
}

// String - implements fmt.Stringer. Encodes the start offset of the range.
func (r Range) String() string {
	if r.Start == 0 {
		return ""
	}

	return _encoder.EncodeToString([]byte(strconv.Itoa(r.Start)))
}

// Size returns the number of rows requested by the range.
func (r Range) Size() int {
	return r.End - r.Start
}

// Next returns the range of the same size that follows n received rows.
func (r Range) Next(n int) Range {
	return NewRange(r.Start+n, r.Size())
}

// Apply applies the range to a gorm query as LIMIT/OFFSET.
func (r Range) Apply(db *gorm.DB) *gorm.DB {
	return db.Offset(r.Start).Limit(r.Size())
}

func (r Range) validate() error {
	if r.Start < 0 || r.End <= r.Start {
		return fmt.Errorf("%w [%d,%d)", ErrInvalidRange, r.Start, r.End)
	}

	return nil
}

var _ fmt.Stringer = Range{}
