// Package store persists scan verdicts in PostgreSQL so results stay
// retrievable after the process restarts and across replicas.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ultrascan/pkg/scan"
)

// ErrNotFound is returned when no verdict exists for a scan id.
var ErrNotFound = errors.New("verdict not found")

// schema is idempotent; EnsureSchema applies it at startup. The full
// report lives in the jsonb column, the indexed columns exist for
// operator queries.
const schema = `
CREATE TABLE IF NOT EXISTS scan_verdicts (
	scan_id      TEXT PRIMARY KEY,
	media_type   TEXT NOT NULL,
	verdict      TEXT NOT NULL,
	trust_score  DOUBLE PRECISION NOT NULL,
	threat_level TEXT NOT NULL,
	report       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS scan_verdicts_created_at_idx ON scan_verdicts (created_at);
CREATE INDEX IF NOT EXISTS scan_verdicts_verdict_idx ON scan_verdicts (verdict);
`

// Store is the PostgreSQL-backed verdict repository.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Printf("[STORE] Verdict store ready")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Save upserts one verdict. Re-saving the same scan id (cache replay)
// overwrites with identical content, so the upsert is safe.
func (s *Store) Save(ctx context.Context, v *scan.Verdict) error {
	report, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO scan_verdicts (scan_id, media_type, verdict, trust_score, threat_level, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scan_id) DO UPDATE SET
			media_type = EXCLUDED.media_type,
			verdict = EXCLUDED.verdict,
			trust_score = EXCLUDED.trust_score,
			threat_level = EXCLUDED.threat_level,
			report = EXCLUDED.report,
			created_at = EXCLUDED.created_at`,
		v.ScanID, string(v.MediaType), string(v.Verdict), v.TrustScore, string(v.ThreatLevel), report, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("save verdict %s: %w", v.ScanID, err)
	}
	return nil
}

// Get returns the verdict for a scan id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, scanID string) (*scan.Verdict, error) {
	var report []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM scan_verdicts WHERE scan_id = $1`, scanID).Scan(&report)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load verdict %s: %w", scanID, err)
	}

	var v scan.Verdict
	if err := json.Unmarshal(report, &v); err != nil {
		return nil, fmt.Errorf("decode verdict %s: %w", scanID, err)
	}
	return &v, nil
}

// Recent returns the newest verdicts, up to limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]*scan.Verdict, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM scan_verdicts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	defer rows.Close()

	var out []*scan.Verdict
	for rows.Next() {
		var report []byte
		if err := rows.Scan(&report); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var v scan.Verdict
		if err := json.Unmarshal(report, &v); err != nil {
			return nil, fmt.Errorf("decode verdict: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes verdicts created before the cutoff; used by the
// retention job.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM scan_verdicts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge verdicts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }
