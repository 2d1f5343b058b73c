package coupons

import (
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/coupontracker-backend/internal/catalog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func normalize(row catalog.Row, today time.Time) Coupon {
	c := Coupon{
		ID:             row.ID,
		Name:           UntitledCoupon,
		Discount:       formatDiscount(row.DiscountAmount, row.DiscountRate),
		ExpirationDate: NoExpiry,
		Store:          UnknownStore,
		Status:         StatusAvailable,
		StandardPrice:  decimal.Zero,
		RegisteredBy:   Unregistered,
		PaymentStatus:  PaymentUnpaid,
	}

	if title := strings.TrimSpace(row.Title.String); row.Title.Valid && title != "" {
		c.Name = row.Title.String
	}
	if row.CodeValue.Valid {
		c.Code = row.CodeValue.String
	}
	if row.StandardPrice.Valid {
		c.StandardPrice = row.StandardPrice.Decimal
	}

	if row.StoreName.Valid && row.StoreName.String != "" {
		c.Store = row.StoreName.String
	}

	if row.ExpiresAt.Valid {
		c.ExpirationDate = row.ExpiresAt.Time.Format(dateLayout)
		if !dateOf(row.ExpiresAt.Time).After(today) {
			c.Status = StatusExpired
		}
	}

	// A usage row whose user has no name counts as unregistered.
	if row.UserName.Valid && strings.TrimSpace(row.UserName.String) != "" {
		c.RegisteredBy = row.UserName.String
		c.registrant = "name:" + row.UserName.String
		if row.UserID.Valid {
			c.registrant = "id:" + strconv.FormatInt(row.UserID.Int64, 10)
		}
	}

	if row.IsUsed.Valid && row.IsUsed.Bool {
		c.PaymentStatus = PaymentPaid
	}
	return c
}

// dateOf drops the clock part, keeping the calendar day as written.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func formatDiscount(amount, rate decimal.NullDecimal) string {
	if amount.Valid && amount.Decimal.IsPositive() {
		return groupThousands(amount.Decimal) + " KRW"
	}
	if rate.Valid && rate.Decimal.IsPositive() {
		return rate.Decimal.String() + "%"
	}
	return NoDiscountInfo
}

func groupThousands(d decimal.Decimal) string {
	whole := d.Truncate(0)
	digits := whole.Abs().String()
	var b strings.Builder
	if whole.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac := d.Sub(whole).Abs(); !frac.IsZero() {
		b.WriteString(strings.TrimPrefix(frac.String(), "0"))
	}
	return b.String()
}
