// Package store provides durable persistence for batch results.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-telco/shrike/internal/domain"
)

// SQLStore implements domain.ResultStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new result store based on configuration.
func New(cfg domain.StoreConfig) (domain.ResultStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveResult stores a result and every prediction in a single
// transaction, so a reader never observes a partially written batch.
func (s *SQLStore) SaveResult(ctx context.Context, result *domain.Result) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("result with id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO results (id, total, predicted_frauds, legit_count, avg_prob, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`),
		result.ID,
		result.Summary.Total, result.Summary.PredictedFrauds,
		result.Summary.LegitCount, result.Summary.AvgProb,
		result.CreatedAt,
	)
	if err != nil {
		return err
	}

	insertPrediction := s.rebind(`
		INSERT INTO predictions (result_id, row_index, subscriber_id, fraud_probability, predicted_fraud, classification, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for i, p := range result.Predictions {
		fields, _ := json.Marshal(p.Fields)
		if _, err := tx.ExecContext(ctx, insertPrediction,
			result.ID, i, p.SubscriberID,
			p.FraudProbability, p.PredictedFraud, p.Classification,
			string(fields),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetResult retrieves a result with its predictions in row order.
func (s *SQLStore) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	result := &domain.Result{ID: id}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT total, predicted_frauds, legit_count, avg_prob, created_at
		FROM results WHERE id = ?
	`), id).Scan(
		&result.Summary.Total, &result.Summary.PredictedFrauds,
		&result.Summary.LegitCount, &result.Summary.AvgProb,
		&result.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT subscriber_id, fraud_probability, predicted_fraud, classification, fields
		FROM predictions WHERE result_id = ? ORDER BY row_index
	`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Prediction
		var fields string
		if err := rows.Scan(
			&p.SubscriberID, &p.FraudProbability,
			&p.PredictedFraud, &p.Classification, &fields,
		); err != nil {
			return nil, err
		}
		if fields != "" {
			json.Unmarshal([]byte(fields), &p.Fields)
		}
		result.Predictions = append(result.Predictions, p)
	}

	return result, rows.Err()
}

// ListResults returns saved result summaries, most recent first.
func (s *SQLStore) ListResults(ctx context.Context) ([]*domain.ResultSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total, predicted_frauds, legit_count, avg_prob, created_at
		FROM results ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.ResultSummary
	for rows.Next() {
		var rs domain.ResultSummary
		if err := rows.Scan(
			&rs.ID, &rs.Summary.Total, &rs.Summary.PredictedFrauds,
			&rs.Summary.LegitCount, &rs.Summary.AvgProb, &rs.CreatedAt,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, &rs)
	}

	return summaries, rows.Err()
}

// PurgeResult deletes a result and its predictions.
func (s *SQLStore) PurgeResult(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM predictions WHERE result_id = ?`), id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM results WHERE id = ?`), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit()
}

// SaveReviewRule stores or replaces a review rule configuration.
func (s *SQLStore) SaveReviewRule(ctx context.Context, rule *domain.ReviewRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("rule with id is required")
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}
	createdAt := rule.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO review_rules (id, name, description, expression, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled
	`),
		rule.ID, rule.Name, rule.Description, rule.Expression, enabled, createdAt,
	)
	return err
}

// ListReviewRules returns every persisted review rule ordered by
// name, disabled ones included so they can be inspected and
// re-enabled. The rule engine skips disabled rules when loading.
func (s *SQLStore) ListReviewRules(ctx context.Context) ([]*domain.ReviewRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, expression, enabled, created_at
		FROM review_rules ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ReviewRule
	for rows.Next() {
		var r domain.ReviewRule
		var enabled int
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Expression, &enabled, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Enabled = enabled == 1
		rules = append(rules, &r)
	}

	return rules, rows.Err()
}

// DeleteReviewRule removes a review rule.
func (s *SQLStore) DeleteReviewRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM review_rules WHERE id = ?`), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
