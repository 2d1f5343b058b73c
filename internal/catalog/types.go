package catalog

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// Row is one joined catalog record. A coupon with several usage rows appears once per usage row.
type Row struct {
	ID             int64               `gorm:"column:id"`
	CodeValue      sql.NullString      `gorm:"column:code_value"`
	Title          sql.NullString      `gorm:"column:title"`
	DiscountAmount decimal.NullDecimal `gorm:"column:dc_amount"`
	DiscountRate   decimal.NullDecimal `gorm:"column:dc_rate"`
	ExpiresAt      sql.NullTime        `gorm:"column:date_expired"`
	// StoreName is already resolved from place and provider; see storeExpr.
	StoreName      sql.NullString      `gorm:"column:store_name"`
	StandardPrice  decimal.NullDecimal `gorm:"column:standard_price"`
	UserID         sql.NullInt64       `gorm:"column:user_id"`
	UserName       sql.NullString      `gorm:"column:user_name"`
	IsUsed         sql.NullBool        `gorm:"column:is_used"`
}

// Filter is the catalog predicate. Empty fields do not constrain the query.
type Filter struct {
	// TitlePattern is a LIKE pattern selected by a team rule.
	TitlePattern string
	Search       string
	CouponNames  []string
	StoreNames   []string
	// IDs restricts results to the given coupon ids when RestrictIDs is set.
	IDs         []int64
	RestrictIDs bool
}

// Page bounds a List call. A zero Limit fetches every matching row.
type Page struct {
	Limit  int
	Offset int
}
