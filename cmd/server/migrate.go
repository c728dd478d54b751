package main

import (
	"context"

	"github.com/Freeeeeet/tutor_scheduler/internal/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}
