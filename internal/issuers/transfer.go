package issuers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

var (
	issuerColumns     = []string{"name", "email", "phone", "created_at", "updated_at"}
	assignmentColumns = []string{"coupon_id", "issuer_email", "issuer_name"}
)

// TransferResult counts rows handled by an import. Row failures are joined into Err.
type TransferResult struct {
	Applied int
	Skipped int
	Err     error
}

// ExportIssuers writes every issuer as CSV with a header row.
func ExportIssuers(ctx context.Context, store *Store, w io.Writer) (int, error) {
	list, err := store.FetchIssuers(ctx)
	if err != nil {
		return 0, err
	}
	out := csv.NewWriter(w)
	if err := out.Write(issuerColumns); err != nil {
		return 0, err
	}
	for _, issuer := range list {
		phone := ""
		if issuer.Phone != nil {
			phone = *issuer.Phone
		}
		record := []string{
			issuer.Name,
			issuer.Email,
			phone,
			issuer.CreatedAt.UTC().Format(time.RFC3339),
			issuer.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := out.Write(record); err != nil {
			return 0, err
		}
	}
	out.Flush()
	return len(list), out.Error()
}

// ExportAssignments writes coupon to issuer mappings ordered by coupon id.
func ExportAssignments(ctx context.Context, store *Store, w io.Writer) (int, error) {
	holders, err := store.FetchAssignments(ctx)
	if err != nil {
		return 0, err
	}
	list, err := store.FetchIssuers(ctx)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0, len(holders))
	for id := range holders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names := make(map[string]string, len(list))
	for _, issuer := range list {
		names[issuer.Email] = issuer.Name
	}

	out := csv.NewWriter(w)
	if err := out.Write(assignmentColumns); err != nil {
		return 0, err
	}
	written := 0
	for _, id := range ids {
		email := holders[id]
		if err := out.Write([]string{strconv.FormatInt(id, 10), email, names[email]}); err != nil {
			return written, err
		}
		written++
	}
	out.Flush()
	return written, out.Error()
}

// ImportIssuers upserts issuers from CSV. Columns are matched by header name.
func ImportIssuers(ctx context.Context, store *Store, r io.Reader) (TransferResult, error) {
	var res TransferResult
	err := eachRecord(r, []string{"name", "email"}, func(line int, row map[string]string) {
		name := strings.TrimSpace(row["name"])
		email := NormalizeEmail(row["email"])
		if name == "" || !ValidEmail(email) {
			res.Skipped++
			res.Err = multierr.Append(res.Err, fmt.Errorf("line %d: name and a valid email are required", line))
			return
		}
		var phone *string
		if p, ok := row["phone"]; ok {
			phone = &p
		}
		if !store.UpsertIssuer(ctx, name, email, phone) {
			res.Skipped++
			res.Err = multierr.Append(res.Err, fmt.Errorf("line %d: saving %s failed", line, email))
			return
		}
		res.Applied++
	})
	return res, err
}

// ImportAssignments assigns coupons from CSV. A missing issuer_name falls back to
// the saved issuer's name, then to the email's local part.
func ImportAssignments(ctx context.Context, store *Store, r io.Reader) (TransferResult, error) {
	var res TransferResult
	err := eachRecord(r, []string{"coupon_id", "issuer_email"}, func(line int, row map[string]string) {
		couponID, err := strconv.ParseInt(strings.TrimSpace(row["coupon_id"]), 10, 64)
		email := NormalizeEmail(row["issuer_email"])
		if err != nil || couponID <= 0 || !ValidEmail(email) {
			res.Skipped++
			res.Err = multierr.Append(res.Err, fmt.Errorf("line %d: coupon_id and a valid issuer_email are required", line))
			return
		}
		name := strings.TrimSpace(row["issuer_name"])
		if name == "" {
			name = DefaultIssuerName(ctx, store, email)
		}
		if !store.AssignCoupon(ctx, name, couponID, email, nil) {
			res.Skipped++
			res.Err = multierr.Append(res.Err, fmt.Errorf("line %d: assigning coupon %d failed", line, couponID))
			return
		}
		res.Applied++
	})
	return res, err
}

// IssuerLookup reads one issuer without surfacing store errors.
type IssuerLookup interface {
	GetIssuer(ctx context.Context, email string) (*Issuer, bool)
}

// DefaultIssuerName is the saved name for email, or the part before @.
func DefaultIssuerName(ctx context.Context, lookup IssuerLookup, email string) string {
	if existing, ok := lookup.GetIssuer(ctx, email); ok && strings.TrimSpace(existing.Name) != "" {
		return existing.Name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func eachRecord(r io.Reader, required []string, fn func(line int, row map[string]string)) error {
	in := csv.NewReader(r)
	in.TrimLeadingSpace = true
	in.FieldsPerRecord = -1

	header, err := in.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("csv input is empty")
	}
	if err != nil {
		return fmt.Errorf("reading csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("csv header is missing column %q", col)
		}
	}

	line := 1
	for {
		record, err := in.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("reading csv line %d: %w", line, err)
		}
		row := make(map[string]string, len(index))
		for col, i := range index {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		fn(line, row)
	}
}
