package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID    int
	Email string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	ctx := context.Background()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Email: "committed@x.com"}).Error
	}))

	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Email: "rolled@x.com"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "rollback should leave the first record only")
}

func TestPingAndDriver(t *testing.T) {
	client := Wrap(newTestDB(t))
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, client.Driver())

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	assert.NotNil(t, sqlDB)
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), Options{
		Name:   "issuers",
		Driver: DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.Equal(t, DriverSQLite, client.Driver())
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	client, err := New(context.Background(), Options{
		Name:      "issuers",
		Driver:    DriverSQLite,
		DSN:       fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		SlowQuery: time.Nanosecond,
	}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var n int
	require.NoError(t, client.DB().Raw("SELECT 1").Scan(&n).Error)
	assert.Contains(t, buf.String(), "db.slow_query")
	assert.Contains(t, buf.String(), `"db":"issuers"`)

	buf.Reset()
	require.Error(t, client.DB().Exec("SELECT * FROM missing_table").Error)
	assert.Contains(t, buf.String(), "db.query_failed")

	buf.Reset()
	var row testModel
	require.NoError(t, client.DB().AutoMigrate(&testModel{}))
	_ = client.DB().First(&row).Error
	assert.NotContains(t, buf.String(), "record not found")
}

func TestNewRejectsMissingDSNAndUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Options{Name: "catalog"}, nil)
	require.Error(t, err)

	_, err = New(context.Background(), Options{Name: "catalog", Driver: "mysql", DSN: "x"}, nil)
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&testModel{Email: "dup@x.com"}).Error)
	err := db.Create(&testModel{Email: "dup@x.com"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "test_models.email"))
	assert.True(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ""))
	assert.False(t, IsUniqueViolation(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, ""))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "issuers_email_key"}
	wrapped := fmt.Errorf("insert: %w", pgErr)
	assert.True(t, IsUniqueViolation(wrapped, "issuers_email_key"))
	assert.False(t, IsUniqueViolation(wrapped, "other_key"))

	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
}

func TestIsNotFound(t *testing.T) {
	db := newTestDB(t)
	var row testModel
	err := db.Where("email = ?", "missing@x.com").First(&row).Error
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}
