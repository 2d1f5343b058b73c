package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "issuerctl",
		Short:         "Manage coupon issuers and assignments",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log store operations to stderr")

	open := func(ctx context.Context) (*issuers.Store, error) {
		cfg, err := config.LoadIssuerDB()
		if err != nil {
			return nil, err
		}
		logg := logger.Nop()
		if verbose {
			logg = logger.New(logger.Options{ServiceName: "issuerctl", Format: "console", Output: os.Stderr})
		}
		store := issuers.Open(ctx, cfg, logg, nil)
		if store.Degraded() {
			_ = store.Close()
			return nil, fmt.Errorf("issuer store unavailable; set %s to a reachable database", config.EnvIssuerDSN)
		}
		return store, nil
	}

	rootCmd.AddCommand(
		listCmd(open),
		assignCmd(open),
		unassignCmd(open),
		deleteCmd(open),
		importCmd(open),
		exportCmd(open),
		healthCmd(open),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
