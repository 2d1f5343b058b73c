package coupons

import (
	"sort"

	"github.com/shopspring/decimal"
)

type group struct {
	issued      int
	paid        int
	registrants map[string]struct{}
}

// Aggregate groups coupons by store then coupon name. Registrations count
// distinct registrants per group.
func Aggregate(items []Coupon) Statistics {
	byStore := make(map[string]map[string]*group)
	for _, c := range items {
		names, ok := byStore[c.Store]
		if !ok {
			names = make(map[string]*group)
			byStore[c.Store] = names
		}
		g, ok := names[c.Name]
		if !ok {
			g = &group{registrants: make(map[string]struct{})}
			names[c.Name] = g
		}
		g.issued++
		if key := registrantKey(c); key != "" {
			g.registrants[key] = struct{}{}
		}
		if c.PaymentStatus == PaymentPaid {
			g.paid++
		}
	}

	stats := Statistics{Stores: make([]StoreStats, 0, len(byStore))}
	for _, store := range sortedKeys(byStore) {
		names := byStore[store]
		entry := StoreStats{Store: store, Coupons: make([]CouponStats, 0, len(names))}
		for _, name := range sortedKeys(names) {
			g := names[name]
			cs := CouponStats{
				CouponName:            name,
				IssuedCount:           g.issued,
				RegisteredCount:       len(g.registrants),
				PaymentCompletedCount: g.paid,
				RegistrationRate:      rate(len(g.registrants), g.issued),
				PaymentRate:           rate(g.paid, g.issued),
			}
			entry.Coupons = append(entry.Coupons, cs)
			entry.add(cs)
		}
		entry.finish()
		stats.Stores = append(stats.Stores, entry)

		stats.Totals.TotalIssued += entry.TotalIssued
		stats.Totals.TotalRegistered += entry.TotalRegistered
		stats.Totals.TotalPaymentCompleted += entry.TotalPaymentCompleted
	}
	stats.Totals.finish()
	return stats
}

func (r *Rollup) add(cs CouponStats) {
	r.TotalIssued += cs.IssuedCount
	r.TotalRegistered += cs.RegisteredCount
	r.TotalPaymentCompleted += cs.PaymentCompletedCount
}

func (r *Rollup) finish() {
	r.OverallRegistrationRate = rate(r.TotalRegistered, r.TotalIssued)
	r.OverallPaymentRate = rate(r.TotalPaymentCompleted, r.TotalIssued)
}

func registrantKey(c Coupon) string {
	if c.registrant != "" {
		return c.registrant
	}
	if c.RegisteredBy == "" || c.RegisteredBy == Unregistered {
		return ""
	}
	return "name:" + c.RegisteredBy
}

// rate is part/whole as a percentage with one decimal; zero when whole is zero.
func rate(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(whole)))
	return pct.Round(1).InexactFloat64()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
