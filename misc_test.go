package infiniteq

import (
	"context"
	"sync"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type tUser struct {
	ID   uint
	Name string
}

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

// memorySource serves ranges of rows from memory and records every request.
type memorySource struct {
	mu       sync.Mutex
	rows     []int
	requests []Range
	queries  []Query
	// failNext makes the next n requests fail with err.
	failNext int
	err      error
	// gate, when set, blocks every request until a value is received.
	gate chan struct{}
	// started receives the range of every request before it blocks on gate.
	started chan Range
}

func newMemorySource(n int) *memorySource {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i + 1
	}

	return &memorySource{rows: rows}
}

func (s *memorySource) FetchRange(ctx context.Context, q Query, r Range) (Page[int], error) {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.queries = append(s.queries, q)
	gate, started := s.gate, s.started
	s.mu.Unlock()

	if started != nil {
		started <- r
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Page[int]{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return Page[int]{}, s.err
	}

	start := min(r.Start, len(s.rows))
	end := min(r.End, len(s.rows))
	rows := make([]int, end-start)
	copy(rows, s.rows[start:end])

	return Page[int]{Rows: rows, Total: int64(len(s.rows))}, nil
}

func (s *memorySource) Requests() []Range {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := make([]Range, len(s.requests))
	copy(ret, s.requests)

	return ret
}
