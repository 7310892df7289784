package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/onnwee/kindred/internal/entity"
	"github.com/onnwee/kindred/internal/match"
	"github.com/onnwee/kindred/internal/tracing"
)

// PostgresStore implements match.ScoreStore backed by PostgreSQL.
// Idempotency relies on the unique (subject_id, candidate_id) constraint of
// the compatibility_scores table: conflicting inserts are skipped with
// ON CONFLICT DO NOTHING, so concurrent refresh jobs need no locking.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres-backed score store.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

const insertScoreQuery = `
	INSERT INTO compatibility_scores (
		id, subject_id, candidate_id, candidate_kind, distance_km,
		interest_score, proximity_score, personality_score,
		size_score, type_score, overall_score, reasons,
		computed_at, expires_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (subject_id, candidate_id) DO NOTHING`

// UpsertIfAbsent inserts rows inside one transaction, skipping pairs that
// already exist regardless of their expiry state. Returns the number of rows
// actually inserted.
func (s *PostgresStore) UpsertIfAbsent(ctx context.Context, rows []match.CompatibilityResult) (int, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "compatibility_scores", tracing.DBOperationInsert)
	var err error
	defer func() { endSpan(err) }()

	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("begin transaction: %w", err)
		return 0, err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("failed to rollback transaction", "error", rbErr)
		}
	}()

	inserted := 0
	for _, r := range rows {
		var reasons []byte
		reasons, err = json.Marshal(r.Reasons)
		if err != nil {
			err = fmt.Errorf("marshal reasons for %s/%s: %w", r.SubjectID, r.CandidateID, err)
			return 0, err
		}

		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}

		var res sql.Result
		res, err = tx.ExecContext(ctx, insertScoreQuery,
			id, r.SubjectID, r.CandidateID, string(r.CandidateKind), r.DistanceKm,
			r.Factors.Interest, r.Factors.Proximity, r.Factors.Personality,
			r.Factors.Size, r.Factors.Type, r.Overall, reasons,
			r.ComputedAt, r.ExpiresAt,
		)
		if err != nil {
			err = fmt.Errorf("insert score %s/%s: %w", r.SubjectID, r.CandidateID, err)
			return 0, err
		}

		var n int64
		n, err = res.RowsAffected()
		if err != nil {
			err = fmt.Errorf("rows affected: %w", err)
			return 0, err
		}
		inserted += int(n)
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit: %w", err)
		return 0, err
	}
	return inserted, nil
}

const queryValidQuery = `
	SELECT id, subject_id, candidate_id, candidate_kind, distance_km,
		interest_score, proximity_score, personality_score,
		size_score, type_score, overall_score, reasons,
		computed_at, expires_at
	FROM compatibility_scores
	WHERE subject_id = $1 AND expires_at > NOW()
	ORDER BY overall_score DESC, candidate_id ASC
	LIMIT $2`

// QueryValid returns unexpired rows for the subject ordered by overall score
// descending. Expired rows never appear even while physically present.
func (s *PostgresStore) QueryValid(ctx context.Context, subjectID string, limit int) ([]match.CompatibilityResult, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "compatibility_scores", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, queryValidQuery, subjectID, limit)
	if err != nil {
		err = fmt.Errorf("query valid scores: %w", err)
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close rows", "error", closeErr)
		}
	}()

	var out []match.CompatibilityResult
	for rows.Next() {
		var r match.CompatibilityResult
		var kind string
		var reasons []byte
		if err = rows.Scan(
			&r.ID, &r.SubjectID, &r.CandidateID, &kind, &r.DistanceKm,
			&r.Factors.Interest, &r.Factors.Proximity, &r.Factors.Personality,
			&r.Factors.Size, &r.Factors.Type, &r.Overall, &reasons,
			&r.ComputedAt, &r.ExpiresAt,
		); err != nil {
			err = fmt.Errorf("scan score row: %w", err)
			return nil, err
		}
		r.CandidateKind = entity.Kind(kind)
		if len(reasons) > 0 {
			if err = json.Unmarshal(reasons, &r.Reasons); err != nil {
				err = fmt.Errorf("unmarshal reasons for %s/%s: %w", r.SubjectID, r.CandidateID, err)
				return nil, err
			}
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterate score rows: %w", err)
		return nil, err
	}
	return out, nil
}

// SweepExpired deletes physically expired rows. Storage hygiene only;
// QueryValid never returns expired rows whether or not this runs.
func (s *PostgresStore) SweepExpired(ctx context.Context) (int, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "compatibility_scores", tracing.DBOperationDelete)
	var err error
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM compatibility_scores WHERE expires_at <= NOW()`)
	if err != nil {
		err = fmt.Errorf("sweep expired scores: %w", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("rows affected: %w", err)
		return 0, err
	}
	return int(n), nil
}
