package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func newPingMock(t *testing.T) (string, sqlmock.Sqlmock) {
	t.Helper()

	dsn := "sqlmock_" + t.Name()

	_, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}

	return dsn, mock
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	errRefused := errors.New("connection refused")

	t.Run("applies pool options", func(t *testing.T) {
		dsn, mock := newPingMock(t)
		mock.ExpectPing()

		o := defaultOptions()
		WithMaxOpenConns(3)(&o)

		db, err := open(ctx, "sqlmock", dsn, o)

		assert.NoError(t, err)
		assert.Equal(t, 3, db.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries ping", func(t *testing.T) {
		dsn, mock := newPingMock(t)
		mock.ExpectPing().WillReturnError(errRefused)
		mock.ExpectPing().WillReturnError(errRefused)
		mock.ExpectPing()

		o := defaultOptions()
		WithPingRetry(3, time.Millisecond)(&o)

		db, err := open(ctx, "sqlmock", dsn, o)

		assert.NoError(t, err)
		assert.NotNil(t, db)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		dsn, mock := newPingMock(t)
		mock.ExpectPing().WillReturnError(errRefused)
		mock.ExpectPing().WillReturnError(errRefused)

		o := defaultOptions()
		WithPingRetry(2, time.Millisecond)(&o)

		db, err := open(ctx, "sqlmock", dsn, o)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errRefused)
		assert.Nil(t, db)
	})

	t.Run("context canceled while waiting", func(t *testing.T) {
		dsn, mock := newPingMock(t)
		mock.ExpectPing().WillReturnError(errRefused)

		ctx, cancel := context.WithCancel(ctx)
		cancel()

		o := defaultOptions()
		WithPingRetry(5, time.Hour)(&o)

		db, err := open(ctx, "sqlmock", dsn, o)

		assert.Error(t, err)
		assert.Nil(t, db)
	})
}
