package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
)

// Bootstrap brings the issuer store schema up to date on startup.
func Bootstrap(ctx context.Context, client *db.Client, logg *logger.Logger) error {
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"driver": client.Driver()})
		logg.Info(ctx, "running issuer store migrations")
	}

	if err := Up(ctx, sqlDB, client.Driver()); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "issuer store migrations completed")
	}
	return nil
}
