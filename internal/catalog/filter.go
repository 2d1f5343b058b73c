package catalog

import (
	"strings"

	"gorm.io/gorm"
)

const (
	// storeExpr resolves the display store: the place name, else the provider name, blanks skipped.
	storeExpr = "COALESCE(NULLIF(TRIM(b.name), ''), NULLIF(TRIM(c.name), ''))"
	likeEsc   = `\`
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input literal inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if p := strings.TrimSpace(f.TitlePattern); p != "" {
		q = q.Where("a.title LIKE ?", p)
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
		q = q.Where(
			"(LOWER(a.title) LIKE ? ESCAPE '"+likeEsc+"' OR LOWER("+storeExpr+") LIKE ? ESCAPE '"+likeEsc+"' OR LOWER(a.code_value) LIKE ? ESCAPE '"+likeEsc+"')",
			pattern, pattern, pattern,
		)
	}

	if names := compact(f.CouponNames); len(names) > 0 {
		q = q.Where("a.title IN ?", names)
	}
	if stores := compact(f.StoreNames); len(stores) > 0 {
		q = q.Where(storeExpr+" IN ?", stores)
	}

	if f.RestrictIDs {
		if len(f.IDs) == 0 {
			q = q.Where("1 = 0")
		} else {
			q = q.Where("a.id IN ?", f.IDs)
		}
	}
	return q
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
