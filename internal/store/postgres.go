package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/portverify/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id             TEXT PRIMARY KEY,
	seq            BIGINT NOT NULL,
	original_name  TEXT NOT NULL,
	query_text     TEXT NOT NULL,
	code           TEXT NOT NULL DEFAULT '',
	localized_name TEXT NOT NULL DEFAULT '',
	country_name   TEXT NOT NULL DEFAULT '',
	remarks        TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	sources        JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_seq ON records(seq);
CREATE INDEX IF NOT EXISTS idx_records_status_updated ON records(status, updated_at);
`

var recordColumns = []string{
	"id", "seq", "original_name", "query_text", "code", "localized_name",
	"country_name", "remarks", "status", "sources", "created_at", "updated_at",
}

const postgresUpsert = `
INSERT INTO records (id, seq, original_name, query_text, code, localized_name, country_name, remarks, status, sources, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	code = EXCLUDED.code,
	localized_name = EXCLUDED.localized_name,
	country_name = EXCLUDED.country_name,
	remarks = EXCLUDED.remarks,
	status = EXCLUDED.status,
	sources = EXCLUDED.sources,
	updated_at = EXCLUDED.updated_at`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func recordRow(r model.Record) ([]any, error) {
	sources, err := encodeSources(r.Sources)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID, r.Seq, r.OriginalName, r.QueryText,
		r.Code, r.LocalizedName, r.CountryName, r.Remarks,
		string(r.Status), sources, r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	}, nil
}

// Append bulk-inserts records with the COPY protocol.
func (s *PostgresStore) Append(ctx context.Context, records ...model.Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row, err := recordRow(r)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if _, err := s.pool.CopyFrom(ctx, pgx.Identifier{"records"}, recordColumns, pgx.CopyFromRows(rows)); err != nil {
		return eris.Wrap(err, "postgres: COPY INTO records")
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, records ...model.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: save: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range records {
		row, err := recordRow(r)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, postgresUpsert, row...); err != nil {
			return eris.Wrapf(err, "postgres: save record %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: save: commit")
}

func (s *PostgresStore) Load(ctx context.Context) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, seq, original_name, query_text, code, localized_name, country_name, remarks, status, sources, created_at, updated_at
		 FROM records ORDER BY seq, created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var r model.Record
		var status string
		var sources []byte
		if err := rows.Scan(
			&r.ID, &r.Seq, &r.OriginalName, &r.QueryText,
			&r.Code, &r.LocalizedName, &r.CountryName, &r.Remarks,
			&status, &sources, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		r.Status = model.Status(status)
		if r.Sources, err = decodeSources(sources); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load records iterate")
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM records`)
	return eris.Wrap(err, "postgres: clear records")
}

func (s *PostgresStore) DemoteStale(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	now = now.UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET status = $1, updated_at = $2 WHERE status = $3 AND updated_at <= $4`,
		string(model.StatusPending), now, string(model.StatusInFlight), now.Add(-olderThan),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: demote stale records")
	}
	return int(tag.RowsAffected()), nil
}
