package issuers

import (
	"context"
	"fmt"

	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/metrics"
	"github.com/angelmondragon/coupontracker-backend/pkg/migrate"
)

var requiredTables = []string{"issuers", "coupon_issuer_assignments"}

// Open picks the backend once for the process lifetime. When the store is not
// configured or cannot be brought up, it falls back to memory and logs a warning.
func Open(ctx context.Context, cfg config.IssuerDBConfig, logg *logger.Logger, m *metrics.IssuerStoreMetrics) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	opts := StoreOptions{
		OpTimeout:           cfg.OpTimeout,
		PlaceholderCouponID: cfg.PlaceholderCouponID,
		Logger:              logg,
		Metrics:             m,
	}

	fallback := func(reason string, err error) *Store {
		fields := map[string]any{"reason": reason}
		if err != nil {
			fields["error"] = err.Error()
		}
		logg.Warn(logg.WithFields(ctx, fields), "issuers.degraded_mode: using in-memory store, assignments will not survive restart")
		opts.Degraded = true
		return NewStore(NewMemoryBackend(), opts)
	}

	if !cfg.Configured() {
		return fallback("not_configured", nil)
	}

	client, err := db.New(ctx, db.IssuerOptions(cfg), logg)
	if err != nil {
		return fallback("connect_failed", err)
	}

	if err := prepareSchema(ctx, cfg, client, logg); err != nil {
		_ = client.Close()
		return fallback("schema_unavailable", err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"driver": client.Driver()}), "issuers.store_ready")
	return NewStore(NewPersistentBackend(client), opts)
}

func prepareSchema(ctx context.Context, cfg config.IssuerDBConfig, client *db.Client, logg *logger.Logger) error {
	if cfg.AutoMigrate {
		return migrate.Bootstrap(ctx, client, logg)
	}
	migrator := client.DB().WithContext(ctx).Migrator()
	for _, table := range requiredTables {
		if !migrator.HasTable(table) {
			return fmt.Errorf("table %s missing and auto-migrate disabled", table)
		}
	}
	return nil
}
