package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/branchpoll"
	"github.com/aretw0/branchpoll/internal/compiler"
	"github.com/aretw0/branchpoll/internal/config"
	"github.com/aretw0/branchpoll/pkg/adapters/file"
	"github.com/aretw0/branchpoll/pkg/adapters/redis"
	"github.com/aretw0/branchpoll/pkg/adapters/sqlite"
	"github.com/aretw0/branchpoll/pkg/domain"
)

// Stack is an engine together with the stores it was built on.
type Stack struct {
	Engine *branchpoll.Engine

	closers []func() error
}

// Close drains the engine, then closes the stores in reverse order of opening.
func (s *Stack) Close(ctx context.Context) error {
	errs := []error{s.Engine.Close(ctx)}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenEngine builds an engine on the configured backend.
func OpenEngine(cfg *config.Config, logger *slog.Logger, hooks domain.LifecycleHooks) (*Stack, error) {
	stack := &Stack{}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		hooks = MergeHooks(hooks, createDebugHooks(logger))
	}
	opts := []branchpoll.Option{
		branchpoll.WithLogger(logger),
		branchpoll.WithLifecycleHooks(hooks),
		branchpoll.WithParser(compiler.NewParser(compiler.WithIndentUnit(cfg.IndentUnit))),
	}

	switch cfg.Backend {
	case config.BackendMemory:

	case config.BackendFile:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		store, err := file.Open(cfg.SnapshotPath(),
			file.WithFlushInterval(cfg.FlushInterval),
			file.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, store.Close)
		opts = append(opts,
			branchpoll.WithPollStore(store),
			branchpoll.WithTallyStore(store),
			branchpoll.WithSessionStore(file.NewSessionStore(cfg.SessionsDir())),
		)

	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.DatabasePath())
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, store.Close)
		opts = append(opts,
			branchpoll.WithPollStore(store),
			branchpoll.WithTallyStore(store),
			branchpoll.WithSessionStore(store.Sessions()),
		)

	case config.BackendRedis:
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		stack.closers = append(stack.closers, client.Close)
		ropts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.SessionTTL)}
		opts = append(opts,
			branchpoll.WithPollStore(redis.NewPollStore(client, ropts...)),
			branchpoll.WithTallyStore(redis.NewTallyStore(client, ropts...)),
			branchpoll.WithSessionStore(redis.NewSessionStore(client, ropts...)),
			branchpoll.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)),
		)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	stack.Engine = branchpoll.New(opts...)
	logger.Debug("engine ready", "backend", cfg.Backend)
	return stack, nil
}
