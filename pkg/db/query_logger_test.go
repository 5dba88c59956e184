package db

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

func openLogged(t *testing.T, buf *bytes.Buffer, slow time.Duration) *gorm.DB {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf, Format: "json"})
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:                 newQueryLogger(logg, slow),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	conn := openLogged(t, buf, time.Nanosecond)
	buf.Reset()

	require.NoError(t, conn.Create(&testModel{Name: "slow"}).Error)
	assert.Contains(t, buf.String(), `"message":"slow query"`)
	assert.Contains(t, buf.String(), "INSERT INTO")
}

func TestQueryLoggerSkipsExpectedFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	conn := openLogged(t, buf, time.Hour)
	require.NoError(t, conn.Create(&testModel{Name: "dup"}).Error)
	buf.Reset()

	require.Error(t, conn.Create(&testModel{Name: "dup"}).Error)
	var row testModel
	require.ErrorIs(t, conn.Where("name = ?", "missing").First(&row).Error, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	require.Error(t, conn.Exec("SELECT * FROM no_such_table").Error)
	assert.Contains(t, buf.String(), `"message":"query failed"`)
}

func TestNewQueryLoggerWithoutLoggerIsSilent(t *testing.T) {
	q := newQueryLogger(nil, time.Millisecond)
	_, ok := q.(*queryLogger)
	assert.False(t, ok)
}

func TestWaitReadyGivesUpAfterRetries(t *testing.T) {
	prev := connectBackoff
	connectBackoff = time.Millisecond
	t.Cleanup(func() { connectBackoff = prev })

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, waitReady(context.Background(), sqlDB, 2, logger.Nop()))

	require.NoError(t, sqlDB.Close())
	err = waitReady(context.Background(), sqlDB, 2, logger.Nop())
	require.Error(t, err)
}
