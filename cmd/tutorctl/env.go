package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Freeeeeet/tutoring_core/internal/app"
	"github.com/Freeeeeet/tutoring_core/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// env общие зависимости подкоманд
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is required")
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: app.NewLogger(app.LoggerConfig{Env: cfg.Environment, Component: "tutorctl", Level: cfg.LogLevel}),
		pool:   pool,
	}, nil
}

func (e *env) Close() {
	e.pool.Close()
	_ = e.logger.Sync()
}

func parseTeacherID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid teacher id %q", arg)
	}
	return id, nil
}
