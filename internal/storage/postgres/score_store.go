package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/storage"
)

// ScoreStore implements storage.ScoreStore using PostgreSQL.
type ScoreStore struct {
	pool *Pool
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(pool *Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

const insertScoreQuery = `
	INSERT INTO candidate_scores (
		instrument, cycle, expected_value, cvar95, prob_loss,
		composite_score, paths, seed, scored_at_ms
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9
	)
`

const selectScoreColumns = `
	SELECT
		instrument, cycle, expected_value, cvar95, prob_loss,
		composite_score, paths, seed, scored_at_ms
	FROM candidate_scores
`

// Insert adds a new score. Returns ErrDuplicateKey if (instrument, cycle) exists.
func (s *ScoreStore) Insert(ctx context.Context, sc *domain.CandidateScore) error {
	if sc == nil || sc.Instrument == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertScoreQuery,
		sc.Instrument, sc.Cycle, sc.ExpectedValue, sc.CVaR95, sc.ProbLoss,
		sc.CompositeScore, sc.Paths, sc.Seed, sc.ScoredAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert candidate score: %w", err)
	}
	return nil
}

// InsertBulk adds multiple scores atomically. Fails entire batch on any duplicate.
func (s *ScoreStore) InsertBulk(ctx context.Context, scores []*domain.CandidateScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sc := range scores {
		if sc == nil || sc.Instrument == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertScoreQuery,
			sc.Instrument, sc.Cycle, sc.ExpectedValue, sc.CVaR95, sc.ProbLoss,
			sc.CompositeScore, sc.Paths, sc.Seed, sc.ScoredAtMs,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert candidate score in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByCycle retrieves all scores for a gate cycle, sorted by composite score DESC
// with instrument ASC as the tie-break.
func (s *ScoreStore) GetByCycle(ctx context.Context, cycle int) ([]*domain.CandidateScore, error) {
	query := selectScoreColumns + `
		WHERE cycle = $1
		ORDER BY composite_score DESC, instrument ASC
	`

	rows, err := s.pool.Query(ctx, query, cycle)
	if err != nil {
		return nil, fmt.Errorf("get scores by cycle: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// GetAll retrieves all scores sorted by (cycle, instrument).
func (s *ScoreStore) GetAll(ctx context.Context) ([]*domain.CandidateScore, error) {
	query := selectScoreColumns + ` ORDER BY cycle ASC, instrument ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all scores: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// scanScores scans multiple rows into a slice of CandidateScore.
func scanScores(rows pgx.Rows) ([]*domain.CandidateScore, error) {
	var scores []*domain.CandidateScore

	for rows.Next() {
		var sc domain.CandidateScore

		err := rows.Scan(
			&sc.Instrument, &sc.Cycle, &sc.ExpectedValue, &sc.CVaR95, &sc.ProbLoss,
			&sc.CompositeScore, &sc.Paths, &sc.Seed, &sc.ScoredAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate score row: %w", err)
		}

		scores = append(scores, &sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate score rows: %w", err)
	}

	return scores, nil
}
