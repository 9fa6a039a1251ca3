package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/portverify/internal/model"
)

// DefaultSQLitePath is used when no database URL is configured.
const DefaultSQLitePath = "portverify.db"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultSQLitePath
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id             TEXT PRIMARY KEY,
	seq            INTEGER NOT NULL,
	original_name  TEXT NOT NULL,
	query_text     TEXT NOT NULL,
	code           TEXT NOT NULL DEFAULT '',
	localized_name TEXT NOT NULL DEFAULT '',
	country_name   TEXT NOT NULL DEFAULT '',
	remarks        TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	sources        TEXT NOT NULL DEFAULT '[]',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_seq ON records(seq);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
`

const sqliteUpsert = `
INSERT INTO records (id, seq, original_name, query_text, code, localized_name, country_name, remarks, status, sources, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	code = excluded.code,
	localized_name = excluded.localized_name,
	country_name = excluded.country_name,
	remarks = excluded.remarks,
	status = excluded.status,
	sources = excluded.sources,
	updated_at = excluded.updated_at`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, records ...model.Record) error {
	return s.write(ctx, "append", `INSERT INTO records (id, seq, original_name, query_text, code, localized_name, country_name, remarks, status, sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, records)
}

func (s *SQLiteStore) Save(ctx context.Context, records ...model.Record) error {
	return s.write(ctx, "save", sqliteUpsert, records)
}

// write runs query once per record inside a single transaction.
func (s *SQLiteStore) write(ctx context.Context, op, query string, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s: begin tx", op)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s: prepare", op)
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range records {
		sources, err := encodeSources(r.Sources)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Seq, r.OriginalName, r.QueryText,
			r.Code, r.LocalizedName, r.CountryName, r.Remarks,
			string(r.Status), string(sources), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: %s record %s", op, r.ID)
		}
	}
	return eris.Wrapf(tx.Commit(), "sqlite: %s: commit", op)
}

func (s *SQLiteStore) Load(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seq, original_name, query_text, code, localized_name, country_name, remarks, status, sources, created_at, updated_at
		 FROM records ORDER BY seq, created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Record
	for rows.Next() {
		var r model.Record
		var sources string
		if err := rows.Scan(
			&r.ID, &r.Seq, &r.OriginalName, &r.QueryText,
			&r.Code, &r.LocalizedName, &r.CountryName, &r.Remarks,
			&r.Status, &sources, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		if r.Sources, err = decodeSources([]byte(sources)); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load records iterate")
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records`)
	return eris.Wrap(err, "sqlite: clear records")
}

func (s *SQLiteStore) DemoteStale(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	now = now.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = ? WHERE status = ? AND updated_at <= ?`,
		string(model.StatusPending), now, string(model.StatusInFlight), now.Add(-olderThan),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: demote stale records")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
