package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/members/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestQueryUnique(t *testing.T) {
	q := `(?s)^SELECT\s+v\s+FROM\s+t\s+WHERE\s+id\s*=\s*\?\s+LIMIT\s+2$`
	query := "SELECT v FROM t WHERE id = ? LIMIT 2"

	tests := []struct {
		name    string
		setup   func(m sqlmock.Sqlmock)
		want    string
		wantErr error
	}{
		{
			name: "single row",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(q).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("one"))
			},
			want: "one",
		},
		{
			name: "no rows",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(q).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"v"}))
			},
			wantErr: common.ErrorNotFound,
		},
		{
			name: "two rows",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(q).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("a").AddRow("b"))
			},
			wantErr: common.ErrAmbiguous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			tt.setup(mock)

			var got string
			err := QueryUnique(context.Background(), db, query, []any{1}, func(s Scanner) error {
				return s.Scan(&got)
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQueryUnique_DriverError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("db down"))

	err := QueryUnique(context.Background(), db, "SELECT v FROM t LIMIT 2", nil, func(s Scanner) error { return nil })
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil))
	assert.ErrorIs(t, WrapError(sql.ErrNoRows), common.ErrorNotFound)
	assert.EqualError(t, WrapError(errors.New("x")), "db error: x")
}

func TestNullableConversions(t *testing.T) {
	now := time.Now()
	nt := NullTime(&now)
	require.True(t, nt.Valid)
	assert.Equal(t, time.UTC, nt.Time.Location())
	assert.True(t, TimePtr(nt).Equal(now.Truncate(time.Microsecond)))
	assert.False(t, NullTime(nil).Valid)
	assert.Nil(t, TimePtr(sql.NullTime{}))

	id := int64(9)
	assert.Equal(t, &id, Int64Ptr(NullInt64(&id)))
	assert.Nil(t, Int64Ptr(NullInt64(nil)))

	s := "ua"
	assert.Equal(t, &s, StringPtr(NullString(&s)))
	assert.Nil(t, StringPtr(NullString(nil)))
}

func TestCheckAffected(t *testing.T) {
	assert.NoError(t, CheckAffected(sqlmock.NewResult(0, 1), nil))
	assert.ErrorIs(t, CheckAffected(sqlmock.NewResult(0, 0), nil), common.ErrorNotFound)
	assert.Error(t, CheckAffected(sqlmock.NewErrorResult(errors.New("no count")), nil))
	assert.Regexp(t, `db error: boom`, CheckAffected(nil, errors.New("boom")).Error())
}
