package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	// Una corrida escribe un reporte por vez; la API solo lee.
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

// Schema crea las tablas de reportes si no existen.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS evaluation_reports (
		id          TEXT PRIMARY KEY,
		run_date    TIMESTAMPTZ NOT NULL,
		models      TEXT[] NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS trait_scores (
		report_id      TEXT NOT NULL REFERENCES evaluation_reports(id) ON DELETE CASCADE,
		model          TEXT NOT NULL,
		trait          CHAR(1) NOT NULL,
		mean           DOUBLE PRECISION,
		item_count     INTEGER NOT NULL,
		expected       INTEGER NOT NULL,
		missing_count  INTEGER NOT NULL,
		PRIMARY KEY (report_id, model, trait)
	)`,
	`CREATE INDEX IF NOT EXISTS evaluation_reports_run_date_idx ON evaluation_reports (run_date DESC)`,
}

// EnsureSchema aplica Schema; es idempotente.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
