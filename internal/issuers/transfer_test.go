package issuers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestImportIssuersSkipsBadRows(t *testing.T) {
	for _, factory := range backendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			store := newTestStore(t, factory.make(t))
			ctx := context.Background()

			input := "\ufeffName,Email,Phone\nAlice,ALICE@x.com,010-1111\n,missing@x.com,\nBob,not-an-email,\nCarol,carol@x.com,\n"
			res, err := ImportIssuers(ctx, store, strings.NewReader(input))
			require.NoError(t, err)

			assert.Equal(t, 2, res.Applied)
			assert.Equal(t, 2, res.Skipped)
			assert.Len(t, multierr.Errors(res.Err), 2)

			alice, ok := store.GetIssuer(ctx, "alice@x.com")
			require.True(t, ok)
			require.NotNil(t, alice.Phone)
			assert.Equal(t, "010-1111", *alice.Phone)
		})
	}
}

func TestImportIssuersRequiresHeader(t *testing.T) {
	store := newTestStore(t, NewMemoryBackend())
	_, err := ImportIssuers(context.Background(), store, strings.NewReader("name,phone\nAlice,1\n"))
	require.ErrorContains(t, err, `"email"`)

	_, err = ImportIssuers(context.Background(), store, strings.NewReader(""))
	require.Error(t, err)
}

func TestImportAssignmentsDefaultsName(t *testing.T) {
	for _, factory := range backendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			store := newTestStore(t, factory.make(t))
			ctx := context.Background()
			require.True(t, store.UpsertIssuer(ctx, "Alice", "alice@x.com", nil))

			input := "coupon_id,issuer_email,issuer_name\n10,alice@x.com,\n11,dave@x.com,\nabc,alice@x.com,\n12,carol@x.com,Carol\n"
			res, err := ImportAssignments(ctx, store, strings.NewReader(input))
			require.NoError(t, err)
			assert.Equal(t, 3, res.Applied)
			assert.Equal(t, 1, res.Skipped)

			assert.Equal(t, map[int64]string{10: "alice@x.com", 11: "dave@x.com", 12: "carol@x.com"},
				store.CouponIssuerMap(ctx, []int64{10, 11, 12}))

			dave, ok := store.GetIssuer(ctx, "dave@x.com")
			require.True(t, ok)
			assert.Equal(t, "dave", dave.Name)
		})
	}
}

func TestExportRoundTripsIntoFreshStore(t *testing.T) {
	for _, factory := range backendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			ctx := context.Background()
			src := newTestStore(t, factory.make(t))
			require.True(t, src.AssignCoupon(ctx, "Alice", 7, "alice@x.com", strPtr("010")))
			require.True(t, src.AssignCoupon(ctx, "Bob", 3, "bob@x.com", nil))

			var issuersCSV, assignmentsCSV bytes.Buffer
			n, err := ExportIssuers(ctx, src, &issuersCSV)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Contains(t, issuersCSV.String(), "\nAlice,alice@x.com,010,")
			assert.Contains(t, issuersCSV.String(), "\nBob,bob@x.com,,")
			assert.NotContains(t, issuersCSV.String(), "0001-01-01")

			n, err = ExportAssignments(ctx, src, &assignmentsCSV)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, "coupon_id,issuer_email,issuer_name\n3,bob@x.com,Bob\n7,alice@x.com,Alice\n", assignmentsCSV.String())

			dst := newTestStore(t, NewMemoryBackend())
			_, err = ImportIssuers(ctx, dst, &issuersCSV)
			require.NoError(t, err)
			_, err = ImportAssignments(ctx, dst, &assignmentsCSV)
			require.NoError(t, err)

			assert.Equal(t, src.CouponIssuerMap(ctx, []int64{3, 7}), dst.CouponIssuerMap(ctx, []int64{3, 7}))
			alice, ok := dst.GetIssuer(ctx, "alice@x.com")
			require.True(t, ok)
			require.NotNil(t, alice.Phone)
			assert.Equal(t, "010", *alice.Phone)
		})
	}
}

func TestExportFailsWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, failingBackend{memoryBackend: newMemoryBackend(utcNow), err: errors.New("connection refused")})

	var buf bytes.Buffer
	_, err := ExportIssuers(ctx, store, &buf)
	require.Error(t, err)
	assert.Empty(t, buf.String(), "no partial backup is written")

	_, err = ExportAssignments(ctx, store, &buf)
	require.Error(t, err)
	assert.Empty(t, buf.String())
}
