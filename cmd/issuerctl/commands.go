package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
)

type opener func(ctx context.Context) (*issuers.Store, error)

// withStore opens the store for one command and always closes it.
func withStore(open opener, fn func(ctx context.Context, store *issuers.Store) error) error {
	ctx := context.Background()
	store, err := open(ctx)
	if err != nil {
		return err
	}
	return multierr.Append(fn(ctx, store), store.Close())
}

func listCmd(open opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issuers with their coupon counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store *issuers.Store) error {
				list, err := store.FetchIssuers(ctx)
				if err != nil {
					return err
				}
				return printIssuers(cmd.OutOrStdout(), list, asJSON)
			})
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func printIssuers(w io.Writer, list []issuers.IssuerSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tPHONE\tCOUPONS")
	for _, issuer := range list {
		phone := "-"
		if issuer.Phone != nil {
			phone = *issuer.Phone
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", issuer.Email, issuer.Name, phone, issuer.CouponCount)
	}
	return tw.Flush()
}

func assignCmd(open opener) *cobra.Command {
	var name, phone string
	cmd := &cobra.Command{
		Use:   "assign [coupon-id] [email]",
		Short: "Make an issuer the holder of a coupon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			couponID, err := parseCouponID(args[0])
			if err != nil {
				return err
			}
			email := issuers.NormalizeEmail(args[1])
			if !issuers.ValidEmail(email) {
				return fmt.Errorf("invalid email %q", args[1])
			}
			return withStore(open, func(ctx context.Context, store *issuers.Store) error {
				if name == "" {
					name = issuers.DefaultIssuerName(ctx, store, email)
				}
				var phonePtr *string
				if cmd.Flags().Changed("phone") {
					phonePtr = &phone
				}
				if !store.AssignCoupon(ctx, name, couponID, email, phonePtr) {
					return fmt.Errorf("assigning coupon %d to %s failed", couponID, email)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "coupon %d assigned to %s (%s)\n", couponID, email, name)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Issuer display name")
	cmd.Flags().StringVarP(&phone, "phone", "p", "", "Issuer phone number")
	return cmd
}

func unassignCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign [coupon-id] [email]",
		Short: "Remove a coupon from an issuer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			couponID, err := parseCouponID(args[0])
			if err != nil {
				return err
			}
			email := issuers.NormalizeEmail(args[1])
			return withStore(open, func(ctx context.Context, store *issuers.Store) error {
				if !store.UnassignCoupon(ctx, email, couponID) {
					return fmt.Errorf("coupon %d is not assigned to %s", couponID, email)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "coupon %d unassigned from %s\n", couponID, email)
				return nil
			})
		},
	}
}

func deleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [email]",
		Short: "Delete an issuer and all of their assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := issuers.NormalizeEmail(args[0])
			return withStore(open, func(ctx context.Context, store *issuers.Store) error {
				if !store.DeleteIssuer(ctx, email) {
					return fmt.Errorf("issuer %s not found", email)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "issuer %s deleted\n", email)
				return nil
			})
		},
	}
}

func importCmd(open opener) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import issuers or assignments from CSV",
		Long: `Import rows from a CSV file with a header line.

  --kind issuers      columns: name,email[,phone]
  --kind assignments  columns: coupon_id,issuer_email[,issuer_name]

Invalid rows are reported and skipped; valid rows are still applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withStore(open, func(ctx context.Context, store *issuers.Store) error {
				var res issuers.TransferResult
				switch kind {
				case "issuers":
					res, err = issuers.ImportIssuers(ctx, store, f)
				case "assignments":
					res, err = issuers.ImportAssignments(ctx, store, f)
				default:
					return fmt.Errorf("unknown --kind %q (issuers|assignments)", kind)
				}
				if err != nil {
					return err
				}
				for _, rowErr := range multierr.Errors(res.Err) {
					fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", rowErr)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d applied, %d skipped\n", kind, res.Applied, res.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "assignments", "What the file holds: issuers or assignments")
	return cmd
}

func exportCmd(open opener) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write issuers or assignments to stdout as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store *issuers.Store) error {
				var (
					n   int
					err error
				)
				switch kind {
				case "issuers":
					n, err = issuers.ExportIssuers(ctx, store, cmd.OutOrStdout())
				case "assignments":
					n, err = issuers.ExportAssignments(ctx, store, cmd.OutOrStdout())
				default:
					return fmt.Errorf("unknown --kind %q (issuers|assignments)", kind)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d %s\n", n, kind)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "assignments", "What to export: issuers or assignments")
	return cmd
}

func healthCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show issuer store status and row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(open, func(ctx context.Context, store *issuers.Store) error {
				h := store.Health(ctx)
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(h); err != nil {
					return err
				}
				if h.Status == issuers.HealthError {
					return fmt.Errorf("issuer store unhealthy: %s", h.Error)
				}
				return nil
			})
		},
	}
}

func parseCouponID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("coupon id must be a positive integer, got %q", raw)
	}
	return id, nil
}
