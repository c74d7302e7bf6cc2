// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultConnectRetries is how many times Connect retries a failed ping.
const DefaultConnectRetries = 5

const connectBaseBackoff = 200 * time.Millisecond

// pinger is the part of a pool Connect needs to check liveness.
type pinger interface {
	Ping(ctx context.Context) error
	Close()
}

// Connect opens a pgx pool for dsn and pings it, retrying with
// exponential backoff while the database comes up.
func Connect(ctx context.Context, dsn string, retries uint64) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, oops.Code("DB_URL_MISSING").Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}

	var pool *pgxpool.Pool
	err = connectWithRetry(ctx, retries, func(ctx context.Context) (pinger, error) {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pool = p
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func connectWithRetry(ctx context.Context, retries uint64, open func(ctx context.Context) (pinger, error)) error {
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(connectBaseBackoff))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := open(ctx)
		if err != nil {
			slog.WarnContext(ctx, "database open failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.WarnContext(ctx, "database ping failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}
