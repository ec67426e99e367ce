package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{DB: sqlDB}, mock
}

func TestHealthCheck_Healthy(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()

	hc := db.HealthCheck(context.Background())

	assert.Equal(t, "healthy", hc.Status)
	assert.Empty(t, hc.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck_PingFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	hc := db.HealthCheck(context.Background())

	assert.Equal(t, "unhealthy", hc.Status)
	assert.Equal(t, "connection refused", hc.Error)
}

func TestPoolWarnings(t *testing.T) {
	assert.Empty(t, poolWarnings(PoolStats{MaxOpenConns: 25, InUse: 3}))
	assert.Empty(t, poolWarnings(PoolStats{InUse: 3}), "unlimited pool never reports exhaustion")

	got := poolWarnings(PoolStats{
		MaxOpenConns:  10,
		InUse:         10,
		WaitCount:     4,
		WaitDuration:  2 * time.Second,
		MaxIdleClosed: 5000,
	})
	assert.Len(t, got, 3)
}
