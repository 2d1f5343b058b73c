package coupons

import "context"

// reconcile attaches issuer emails for exactly the coupons on the page.
// Issuer store failures leave the field blank.
func reconcile(ctx context.Context, store IssuerStore, page []Coupon) {
	if len(page) == 0 {
		return
	}
	ids := make([]int64, 0, len(page))
	seen := make(map[int64]struct{}, len(page))
	for _, c := range page {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		ids = append(ids, c.ID)
	}

	holders := store.CouponIssuerMap(ctx, ids)
	for i := range page {
		page[i].Issuer = holders[page[i].ID]
	}
}
