// Package catalogtest builds an in-memory copy of the legacy catalog schema for tests.
package catalogtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS b_class_bplace (
  id INTEGER PRIMARY KEY,
  name TEXT
);`,
	`CREATE TABLE IF NOT EXISTS b_class_bprovider (
  id INTEGER PRIMARY KEY,
  name TEXT
);`,
	`CREATE TABLE IF NOT EXISTS user_user (
  id INTEGER PRIMARY KEY,
  name TEXT
);`,
	`CREATE TABLE IF NOT EXISTS b_payment_bcoupon (
  id INTEGER PRIMARY KEY,
  code_value TEXT,
  title TEXT,
  dc_amount NUMERIC,
  dc_rate NUMERIC,
  date_expired DATE,
  b_place_id INTEGER,
  b_provider_id INTEGER,
  standard_price NUMERIC
);`,
	`CREATE TABLE IF NOT EXISTS b_payment_bcouponuser (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  b_coupon_id INTEGER NOT NULL,
  user_id INTEGER,
  is_used BOOLEAN
);`,
}

// Coupon is a seed row for b_payment_bcoupon.
type Coupon struct {
	ID            int64
	Code          string
	Title         *string
	Amount        int64
	Rate          int64
	Expires       *time.Time
	PlaceID       int64
	ProviderID    int64
	StandardPrice int64
}

// Fixture owns one isolated catalog database.
type Fixture struct {
	t  *testing.T
	DB *gorm.DB
}

// New opens a fresh catalog database named after the running test.
func New(t *testing.T) *Fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:catalog_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &Fixture{t: t, DB: conn}
}

// Client wraps the fixture connection.
func (f *Fixture) Client() *db.Client {
	return db.Wrap(f.DB)
}

func (f *Fixture) exec(sql string, args ...any) {
	f.t.Helper()
	require.NoError(f.t, f.DB.Exec(sql, args...).Error)
}

func (f *Fixture) Place(id int64, name string) {
	f.exec("INSERT INTO b_class_bplace (id, name) VALUES (?, ?)", id, name)
}

func (f *Fixture) Provider(id int64, name string) {
	f.exec("INSERT INTO b_class_bprovider (id, name) VALUES (?, ?)", id, name)
}

func (f *Fixture) User(id int64, name string) {
	f.exec("INSERT INTO user_user (id, name) VALUES (?, ?)", id, name)
}

func (f *Fixture) Coupon(c Coupon) {
	f.t.Helper()
	var expires any
	if c.Expires != nil {
		expires = c.Expires.Format("2006-01-02")
	}
	f.exec(
		`INSERT INTO b_payment_bcoupon (id, code_value, title, dc_amount, dc_rate, date_expired, b_place_id, b_provider_id, standard_price)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullString(c.Code), c.Title, c.Amount, c.Rate, expires, nullID(c.PlaceID), nullID(c.ProviderID), c.StandardPrice,
	)
}

// Usage records a registration row; userID 0 leaves the registrant empty.
func (f *Fixture) Usage(couponID, userID int64, used bool) {
	f.exec("INSERT INTO b_payment_bcouponuser (b_coupon_id, user_id, is_used) VALUES (?, ?, ?)", couponID, nullID(userID), used)
}

// Title is a convenience for Coupon.Title.
func Title(s string) *string {
	return &s
}

// Date returns midnight UTC for the given day.
func Date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
