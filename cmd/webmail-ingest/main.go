// Command webmail-ingest reads one raw RFC 5322 message from stdin and
// routes it into the owning mailbox. It is meant to be called from an MTA
// pipe transport or a delivery hook.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/rbaliyan/webmail"
	"github.com/rbaliyan/webmail/internal/config"
	"github.com/rbaliyan/webmail/resolver"
	"github.com/rbaliyan/webmail/store"
	"github.com/rbaliyan/webmail/store/postgres"
	"github.com/rbaliyan/webmail/store/sqlite"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	st, res, closeDB, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	opts := []webmail.Option{
		webmail.WithStore(st),
		webmail.WithAccountResolver(res),
		webmail.WithLogger(logger),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, webmail.WithRedisClient(rdb))
	}

	svc, err := webmail.NewService(opts...)
	if err != nil {
		return err
	}
	if err := svc.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			logger.Warn("close service", "error", err)
		}
	}()

	result, err := svc.ReceiveRaw(ctx, os.Stdin)
	if err != nil {
		return err
	}
	if !result.Stored {
		logger.Info("message discarded", "recipient", result.Recipient)
		return nil
	}
	logger.Info("message stored",
		"recipient", result.Recipient,
		"owner_id", result.OwnerID,
		"email_id", result.Email.ID,
	)
	return nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, webmail.AccountResolver, func(), error) {
	table := resolver.WithTable(cfg.UsersTable, cfg.IDColumn, cfg.EmailColumn)

	switch cfg.DBDriver {
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.DBDSN, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, nil, err
		}
		// The store owns the connection and closes it with the service.
		return st, resolver.NewSQL(st.DB(), table), func() {}, nil

	case config.DriverPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DBDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		st := postgres.New(db, postgres.WithLogger(logger))
		res := resolver.NewSQL(db, table, resolver.WithIdentifierQuoter(pq.QuoteIdentifier))
		return st, res, func() { db.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
