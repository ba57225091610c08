package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/ports"
)

const historyTable = "classification_history"

// HistoryRepository keeps an audit trail of classifier calls in sqlite.
// It never answers analyze requests.
type HistoryRepository struct {
	db *sql.DB
}

var _ ports.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository wires a sql.DB implementation.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record appends one classification outcome.
func (r *HistoryRepository) Record(ctx context.Context, record domain.ClassificationRecord) error {
	if r.db == nil {
		return nil
	}

	scores, err := json.Marshal(toRows(record.Scores))
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := sq.Insert(historyTable).
		Columns("post_key", "outcome", "label", "scores", "error", "created_at").
		Values(record.Key, string(record.Outcome), string(record.Label), string(scores), record.Error, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Totals counts recorded calls per outcome.
func (r *HistoryRepository) Totals(ctx context.Context) (map[domain.Outcome]int, error) {
	result := map[domain.Outcome]int{}
	if r.db == nil {
		return result, nil
	}

	query, args, err := sq.Select("outcome", "COUNT(*)").
		From(historyTable).
		GroupBy("outcome").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			outcome string
			count   int
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		result[domain.Outcome(outcome)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Recent returns the newest records first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]domain.ClassificationRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query, args, err := sq.Select("post_key", "outcome", "label", "scores", "error", "created_at").
		From(historyTable).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var records []domain.ClassificationRecord
	for rows.Next() {
		var (
			rec     domain.ClassificationRecord
			outcome string
			label   string
			scores  string
		)
		if err := rows.Scan(&rec.Key, &outcome, &label, &scores, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		rec.Outcome = domain.Outcome(outcome)
		rec.Label = domain.Label(label)

		var decoded []scoreRow
		if err := json.Unmarshal([]byte(scores), &decoded); err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", rec.Key, err)
		}
		rec.Scores = fromRows(decoded)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

type scoreRow struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func toRows(scores domain.ScoreList) []scoreRow {
	rows := make([]scoreRow, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, scoreRow{Label: string(s.Label), Score: s.Score})
	}
	return rows
}

func fromRows(rows []scoreRow) domain.ScoreList {
	scores := make(domain.ScoreList, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, domain.Score{Label: domain.Label(row.Label), Score: row.Score})
	}
	return scores
}
