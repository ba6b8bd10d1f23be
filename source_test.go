package infiniteq

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func Test_GORMSource_FetchRange(t *testing.T) {
	sqlMockFnList := []func() (string, *gorm.DB, sqlmock.Sqlmock, error){
		newGORMMySQLMock,
		newGORMPostgresMock,
	}

	tests := []struct {
		name          string
		query         Query
		rng           Range
		expectedCount string
		expectedQuery string
		expectedArgs  []driver.Value
		expectedRows  func() *sqlmock.Rows
		expectedTotal int64
		expectedLen   int
	}{
		{
			name:          "first range without filters",
			query:         NewQuery("users"),
			rng:           NewRange(0, 3),
			expectedCount: "^SELECT count\\(\\*\\) FROM [`'\"]users[`'\"]$",
			expectedQuery: "^SELECT \\* FROM [`'\"]users[`'\"] LIMIT 3$",
			expectedRows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b").AddRow(3, "c")
			},
			expectedTotal: 7,
			expectedLen:   3,
		},
		{
			name: "later range with filter and ordering",
			query: NewQuery("users").
				Eq("name", "lol").
				OrderBy(OrderBy{Column: "id", Direction: DirectionASC}),
			rng:           NewRange(6, 3),
			expectedCount: "^SELECT count\\(\\*\\) FROM [`'\"]users[`'\"] WHERE name = (?:\\$\\d|\\?)$",
			expectedQuery: "^SELECT \\* FROM [`'\"]users[`'\"] WHERE name = (?:\\$\\d|\\?) ORDER BY id ASC LIMIT 3 OFFSET 6$",
			expectedArgs:  []driver.Value{"lol"},
			expectedRows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "lol")
			},
			expectedTotal: 7,
			expectedLen:   1,
		},
		{
			name: "multiple filters are joined with AND",
			query: NewQuery("users").
				Where("id", OperatorGT, 5).
				Where("name", OperatorLike, "j%"),
			rng:           NewRange(3, 3),
			expectedCount: "^SELECT count\\(\\*\\) FROM [`'\"]users[`'\"] WHERE \\(?id > (?:\\$\\d|\\?) AND name LIKE (?:\\$\\d|\\?)\\)?$",
			expectedQuery: "^SELECT \\* FROM [`'\"]users[`'\"] WHERE \\(?id > (?:\\$\\d|\\?) AND name LIKE (?:\\$\\d|\\?)\\)? LIMIT 3 OFFSET 3$",
			expectedArgs:  []driver.Value{5, "j%"},
			expectedRows: func() *sqlmock.Rows {
				return sqlmock.NewRows([]string{"id", "name"})
			},
			expectedTotal: 3,
			expectedLen:   0,
		},
	}

	for _, sqlMockFn := range sqlMockFnList {
		for _, tt := range tests {
			dialect, db, dbMock, err := sqlMockFn()
			t.Run(fmt.Sprintf("%s %s", dialect, tt.name), func(t *testing.T) {
				if err != nil {
					t.Fatalf("gorm open: %v", err)
				}

				countExpectation := dbMock.ExpectQuery(tt.expectedCount)
				queryExpectation := dbMock.ExpectQuery(tt.expectedQuery)
				if len(tt.expectedArgs) > 0 {
					countExpectation = countExpectation.WithArgs(tt.expectedArgs...)
					queryExpectation = queryExpectation.WithArgs(tt.expectedArgs...)
				}
				countExpectation.WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.expectedTotal))
				queryExpectation.WillReturnRows(tt.expectedRows())

				page, err := NewGORMSource[tUser](db).FetchRange(context.Background(), tt.query, tt.rng)
				require.NoError(t, err)
				require.Equal(t, tt.expectedTotal, page.Total)
				require.Len(t, page.Rows, tt.expectedLen)

				assert.NoError(t, dbMock.ExpectationsWereMet())
			})
		}
	}
}

func Test_GORMSource_FetchRange_Failures(t *testing.T) {
	_, db, dbMock, err := newGORMPostgresMock()
	require.NoError(t, err)

	src := NewGORMSource[tUser](db)
	ctx := context.Background()

	t.Run("invalid query is rejected before reaching the database", func(t *testing.T) {
		_, err := src.FetchRange(ctx, NewQuery("users; --"), NewRange(0, 3))

		var ff *FetchFailed
		require.ErrorAs(t, err, &ff)
		require.Equal(t, NewRange(0, 3), ff.Range)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := src.FetchRange(ctx, NewQuery("users"), Range{Start: 3, End: 3})
		require.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("count failure", func(t *testing.T) {
		errDenied := errors.New("permission denied for table users")
		dbMock.ExpectQuery("^SELECT count").WillReturnError(errDenied)

		_, err := src.FetchRange(ctx, NewQuery("users"), NewRange(0, 3))
		require.ErrorIs(t, err, errDenied)
		require.ErrorContains(t, err, "cannot count rows")
	})

	t.Run("select failure", func(t *testing.T) {
		errBroken := errors.New("connection reset")
		dbMock.ExpectQuery("^SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
		dbMock.ExpectQuery("^SELECT \\*").WillReturnError(errBroken)

		_, err := src.FetchRange(ctx, NewQuery("users"), NewRange(0, 3))
		require.ErrorIs(t, err, errBroken)
		require.ErrorContains(t, err, "cannot fetch rows")
	})

	t.Run("nil database", func(t *testing.T) {
		_, err := NewGORMSource[tUser](nil).FetchRange(ctx, NewQuery("users"), NewRange(0, 3))
		require.Error(t, err)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func Test_Controller_WithGORMSource(t *testing.T) {
	_, db, dbMock, err := newGORMMySQLMock()
	require.NoError(t, err)

	usersPage := func(ids ...int) *sqlmock.Rows {
		rows := sqlmock.NewRows([]string{"id", "name"})
		for _, id := range ids {
			rows.AddRow(id, fmt.Sprintf("user-%d", id))
		}
		return rows
	}

	dbMock.ExpectQuery("^SELECT count\\(\\*\\) FROM `users`$").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	dbMock.ExpectQuery("^SELECT `?id`?, ?`?name`? FROM `users` ORDER BY id ASC LIMIT 3$").WillReturnRows(usersPage(1, 2, 3))
	dbMock.ExpectQuery("^SELECT count\\(\\*\\) FROM `users`$").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	dbMock.ExpectQuery("^SELECT `?id`?, ?`?name`? FROM `users` ORDER BY id ASC LIMIT 3 OFFSET 3$").WillReturnRows(usersPage(4, 5))

	ctx := context.Background()
	c := New[tUser](NewGORMSource[tUser](db))
	cfg := Config{
		Table:    "users",
		Columns:  []string{"id", "name"},
		PageSize: 3,
		Refine: func(q Query) Query {
			return q.OrderBy(OrderBy{Column: "id", Direction: DirectionASC})
		},
	}

	require.NoError(t, c.Initialize(ctx, cfg))
	require.NoError(t, c.FetchNextPage(ctx))
	require.NoError(t, c.FetchNextPage(ctx))

	v := c.View()
	require.Len(t, v.Items, 5)
	require.Equal(t, "user-5", v.Items[4].Name)
	require.False(t, v.HasMore)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}
