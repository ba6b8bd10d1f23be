package infiniteq

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// UnknownTotal is reported by sources that cannot count the matching rows.
const UnknownTotal int64 = -1

// Page is the outcome of a single range fetch.
type Page[T any] struct {
	// Rows in the order the source returned them.
	Rows []T
	// Total number of rows matching the query predicate, ignoring the range.
	// UnknownTotal if the source cannot tell.
	Total int64
}

// Source is the remote data client the controller pulls pages from.
type Source[T any] interface {
	// FetchRange returns the rows of q within r together with the exact count
	// of rows matching q. A page either fully succeeds or fails.
	FetchRange(ctx context.Context, q Query, r Range) (Page[T], error)
}

// SourceFunc is an adapter to allow the use of ordinary functions as a Source.
type SourceFunc[T any] func(ctx context.Context, q Query, r Range) (Page[T], error)

// FetchRange - implements Source.
func (f SourceFunc[T]) FetchRange(ctx context.Context, q Query, r Range) (Page[T], error) {
	return f(ctx, q, r)
}

// GORMSource fetches pages from a relational database through gorm. T is
// either a model struct or map[string]any.
type GORMSource[T any] struct {
	db *gorm.DB
}

func NewGORMSource[T any](db *gorm.DB) *GORMSource[T] {
	return &GORMSource[T]{db: db}
}

// FetchRange - implements Source. Issues COUNT(*) over the refined query and
// then the ranged SELECT.
func (s *GORMSource[T]) FetchRange(ctx context.Context, q Query, r Range) (Page[T], error) {
	if s == nil || s.db == nil {
		return Page[T]{}, &FetchFailed{Range: r, Err: fmt.Errorf("gorm source has no database")}
	}

	if err := q.Validate(); err != nil {
		return Page[T]{}, &FetchFailed{Range: r, Err: fmt.Errorf("invalid query: %w", err)}
	}

	if err := r.validate(); err != nil {
		return Page[T]{}, &FetchFailed{Range: r, Err: err}
	}

	db := s.db.WithContext(ctx)

	var total int64
	if err := q.applyPredicate(db).Count(&total).Error; err != nil {
		return Page[T]{}, &FetchFailed{Range: r, Err: fmt.Errorf("cannot count rows: %w", err)}
	}

	rows := make([]T, 0, r.Size())
	if err := r.Apply(q.Apply(db)).Find(&rows).Error; err != nil {
		return Page[T]{}, &FetchFailed{Range: r, Err: fmt.Errorf("cannot fetch rows: %w", err)}
	}

	return Page[T]{Rows: rows, Total: total}, nil
}

var _ Source[map[string]any] = (*GORMSource[map[string]any])(nil)
