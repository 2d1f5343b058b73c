package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"github.com/angelmondragon/coupontracker-backend/pkg/metrics"
	"gorm.io/gorm"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrUserNotFound   = errors.New("catalog user not found")
	ErrUserAmbiguous  = errors.New("catalog user name is ambiguous")
)

const rowColumns = `a.id AS id,
	a.code_value AS code_value,
	a.title AS title,
	a.dc_amount AS dc_amount,
	a.dc_rate AS dc_rate,
	a.date_expired AS date_expired,
	` + storeExpr + ` AS store_name,
	a.standard_price AS standard_price,
	e.id AS user_id,
	e.name AS user_name,
	d.is_used AS is_used`

// Options tunes catalog query execution.
type Options struct {
	QueryTimeout time.Duration
	Metrics      *metrics.CatalogMetrics
}

// Repository reads the externally owned coupon catalog.
type Repository struct {
	db      *gorm.DB
	timeout time.Duration
	metrics *metrics.CatalogMetrics
}

// NewRepository builds a catalog repository bound to the provided client.
func NewRepository(client *db.Client, opts Options) *Repository {
	return &Repository{db: client.DB(), timeout: opts.QueryTimeout, metrics: opts.Metrics}
}

func (r *Repository) run(ctx context.Context, query string, fn func(tx *gorm.DB) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(r.db.WithContext(ctx))
	// drivers report cancelled queries with their own errors
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = errors.Join(context.DeadlineExceeded, err)
	}
	r.metrics.Observe(query, time.Since(start), err)
	return err
}

func joined(tx *gorm.DB) *gorm.DB {
	return tx.Table("b_payment_bcoupon a").
		Joins("LEFT JOIN b_class_bplace b ON b.id = a.b_place_id").
		Joins("LEFT JOIN b_class_bprovider c ON c.id = a.b_provider_id").
		Joins("LEFT JOIN b_payment_bcouponuser d ON d.b_coupon_id = a.id").
		Joins("LEFT JOIN user_user e ON e.id = d.user_id")
}

// Count returns the number of joined rows matching the filter.
func (r *Repository) Count(ctx context.Context, f Filter) (int64, error) {
	var total int64
	err := r.run(ctx, "count", func(tx *gorm.DB) error {
		return f.apply(joined(tx)).Count(&total).Error
	})
	return total, err
}

// List returns joined rows ordered by coupon id descending.
func (r *Repository) List(ctx context.Context, f Filter, page Page) ([]Row, error) {
	rows := make([]Row, 0)
	err := r.run(ctx, "list", func(tx *gorm.DB) error {
		q := f.apply(joined(tx)).Select(rowColumns).Order("a.id DESC").Order("d.id DESC")
		if page.Limit > 0 {
			q = q.Limit(page.Limit).Offset(page.Offset)
		}
		return q.Scan(&rows).Error
	})
	return rows, err
}

// DistinctTitles returns the sorted set of non-empty coupon titles.
func (r *Repository) DistinctTitles(ctx context.Context, titlePattern string) ([]string, error) {
	var titles []string
	err := r.run(ctx, "distinct_titles", func(tx *gorm.DB) error {
		q := Filter{TitlePattern: titlePattern}.apply(tx.Table("b_payment_bcoupon a")).
			Where("a.title IS NOT NULL")
		return q.Distinct("a.title").Scan(&titles).Error
	})
	if err != nil {
		return nil, err
	}
	return sortedNonEmpty(titles), nil
}

// DistinctStores returns the sorted set of resolved store names.
func (r *Repository) DistinctStores(ctx context.Context, titlePattern string) ([]string, error) {
	var stores []string
	err := r.run(ctx, "distinct_stores", func(tx *gorm.DB) error {
		q := tx.Table("b_payment_bcoupon a").
			Joins("LEFT JOIN b_class_bplace b ON b.id = a.b_place_id").
			Joins("LEFT JOIN b_class_bprovider c ON c.id = a.b_provider_id").
			Where(storeExpr + " IS NOT NULL")
		q = Filter{TitlePattern: titlePattern}.apply(q)
		return q.Distinct(storeExpr).Scan(&stores).Error
	})
	if err != nil {
		return nil, err
	}
	return sortedNonEmpty(stores), nil
}

// SetRegisteredBy points the coupon's usage row at the catalog user with the given display name.
// A usage row is created, unused, when the coupon has none.
func (r *Repository) SetRegisteredBy(ctx context.Context, couponID int64, userName string) (int64, error) {
	var userID int64
	err := r.run(ctx, "set_registered_by", func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			var ids []int64
			if err := tx.Table("user_user").Where("name = ?", userName).Limit(2).Pluck("id", &ids).Error; err != nil {
				return err
			}
			switch len(ids) {
			case 0:
				return ErrUserNotFound
			case 1:
				userID = ids[0]
			default:
				return ErrUserAmbiguous
			}

			var coupons int64
			if err := tx.Table("b_payment_bcoupon").Where("id = ?", couponID).Count(&coupons).Error; err != nil {
				return err
			}
			if coupons == 0 {
				return ErrCouponNotFound
			}

			res := tx.Exec("UPDATE b_payment_bcouponuser SET user_id = ? WHERE b_coupon_id = ?", userID, couponID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				return nil
			}
			return tx.Exec(
				"INSERT INTO b_payment_bcouponuser (b_coupon_id, user_id, is_used) VALUES (?, ?, ?)",
				couponID, userID, false,
			).Error
		})
	})
	return userID, err
}

// CouponExists reports whether the catalog holds the coupon id.
func (r *Repository) CouponExists(ctx context.Context, couponID int64) (bool, error) {
	var n int64
	err := r.run(ctx, "coupon_exists", func(tx *gorm.DB) error {
		return tx.Table("b_payment_bcoupon").Where("id = ?", couponID).Count(&n).Error
	})
	return n > 0, err
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.run(ctx, "ping", func(tx *gorm.DB) error {
		return tx.Exec("SELECT 1").Error
	})
}

func sortedNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
