package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
)

// sharedStore returns one memory store across commands; Close is a no-op for memory.
func sharedStore() (*issuers.Store, opener) {
	store := issuers.NewStore(issuers.NewMemoryBackend(), issuers.StoreOptions{})
	return store, func(context.Context) (*issuers.Store, error) { return store, nil }
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAssignAndList(t *testing.T) {
	store, open := sharedStore()

	out, err := run(t, assignCmd(open), "42", "Kim@Example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "coupon 42 assigned to kim@example.com (kim)")
	assert.Equal(t, map[int64]string{42: "kim@example.com"}, store.CouponIssuerMap(context.Background(), []int64{42}))

	out, err = run(t, listCmd(open))
	require.NoError(t, err)
	assert.Contains(t, out, "kim@example.com")
	assert.Contains(t, out, "EMAIL")
}

func TestAssignRejectsBadInput(t *testing.T) {
	_, open := sharedStore()

	_, err := run(t, assignCmd(open), "zero", "kim@example.com")
	require.Error(t, err)

	_, err = run(t, assignCmd(open), "1", "not-an-email")
	require.Error(t, err)
}

func TestUnassignAndDelete(t *testing.T) {
	store, open := sharedStore()
	require.True(t, store.AssignCoupon(context.Background(), "Kim", 5, "kim@example.com", nil))

	_, err := run(t, unassignCmd(open), "5", "kim@example.com")
	require.NoError(t, err)
	_, err = run(t, unassignCmd(open), "5", "kim@example.com")
	require.Error(t, err)

	_, err = run(t, deleteCmd(open), "kim@example.com")
	require.NoError(t, err)
	_, err = run(t, deleteCmd(open), "kim@example.com")
	require.Error(t, err)
}

func TestImportAssignmentsFromFile(t *testing.T) {
	store, open := sharedStore()
	path := filepath.Join(t.TempDir(), "assignments.csv")
	require.NoError(t, os.WriteFile(path, []byte("coupon_id,issuer_email\n1,a@x.com\nbad,a@x.com\n2,b@x.com\n"), 0o600))

	out, err := run(t, importCmd(open), path, "--kind", "assignments")
	require.NoError(t, err)
	assert.Contains(t, out, "assignments: 2 applied, 1 skipped")
	assert.Contains(t, out, "skipped: line 3")
	assert.Len(t, store.CouponIssuerMap(context.Background(), []int64{1, 2}), 2)
}

func TestExportIssuersWritesCSV(t *testing.T) {
	store, open := sharedStore()
	require.True(t, store.UpsertIssuer(context.Background(), "Kim", "kim@example.com", nil))

	out, err := run(t, exportCmd(open), "--kind", "issuers")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "name,email,phone,created_at,updated_at\nKim,kim@example.com,"))
}

func TestHealthReportsMemoryBackend(t *testing.T) {
	_, open := sharedStore()
	out, err := run(t, healthCmd(open))
	require.NoError(t, err)
	assert.Contains(t, out, `"backend": "memory"`)
}
