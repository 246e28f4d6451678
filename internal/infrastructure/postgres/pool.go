package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"

	"github.com/jhoicas/xsist-conector/pkg/config"
)

const (
	applicationName = "xsist-conector"
	maxConns        = 4
	pingTimeout     = 5 * time.Second
)

// PoolConfig arma la configuración del pool del historial sin conectar.
// DATABASE_URL tiene prioridad sobre DB_HOST/DB_PORT/...; el host se usa tal
// cual lo resuelva el sistema.
func PoolConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("historial: base de datos no configurada")
	}
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		// El DSN lleva la contraseña: no se incluye el error original.
		return nil, fmt.Errorf("historial: DSN de PostgreSQL inválido")
	}

	// Un solo operador local: pocas conexiones y ninguna ociosa obligatoria.
	pc.MaxConns = maxConns
	pc.MinConns = 0
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 30 * time.Minute
	pc.HealthCheckPeriod = time.Minute

	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = map[string]string{}
	}
	if pc.ConnConfig.RuntimeParams["application_name"] == "" {
		pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	// NUMERIC (total del documento) -> shopspring/decimal en cada conexión.
	pc.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	return pc, nil
}

// NewPool crea el pool y verifica la conexión.
func NewPool(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("crear pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}
	return pool, nil
}
