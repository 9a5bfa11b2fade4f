// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
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

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransactions stores a batch of canonical transactions. Re-imported
// rows overwrite rather than duplicate.
func (r *SQLRepository) SaveTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO transactions (
			id, customer_id, date, amount, product_id, category, channel, region
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			date = excluded.date,
			amount = excluded.amount,
			product_id = excluded.product_id,
			category = excluded.category,
			channel = excluded.channel,
			region = excluded.region
	`

	stmt, err := dbTx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, tx := range txs {
		if tx.ID == "" {
			return fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.CustomerID, tx.Date, tx.Amount,
			tx.ProductID, tx.Category, tx.Channel, tx.Region,
		); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, date, amount, product_id, category, channel, region
		FROM transactions
		WHERE id = ?
	`

	var tx domain.Transaction
	err := r.db.QueryRowContext(ctx, r.rebind(query), txID).Scan(
		&tx.ID, &tx.CustomerID, &tx.Date, &tx.Amount,
		&tx.ProductID, &tx.Category, &tx.Channel, &tx.Region,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions retrieves all canonical transactions in a stable order.
func (r *SQLRepository) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, date, amount, product_id, category, channel, region
		FROM transactions
		ORDER BY date, id
	`
	return r.queryTransactions(ctx, query)
}

// ListTransactionsByCustomer retrieves one customer's transactions since a
// point in time.
func (r *SQLRepository) ListTransactionsByCustomer(ctx context.Context, customerID string, since time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT id, customer_id, date, amount, product_id, category, channel, region
		FROM transactions
		WHERE customer_id = ? AND date >= ?
		ORDER BY date, id
	`
	return r.queryTransactions(ctx, query, customerID, since)
}

// CountTransactions returns the size of the canonical transaction set.
func (r *SQLRepository) CountTransactions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	return count, err
}

func (r *SQLRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.CustomerID, &tx.Date, &tx.Amount,
			&tx.ProductID, &tx.Category, &tx.Channel, &tx.Region,
		); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

// SaveRunResult stores a complete run snapshot atomically: the run row plus
// all four derived tables. Derived tables are written whole, never
// partially updated.
func (r *SQLRepository) SaveRunResult(ctx context.Context, result *domain.RunResult) error {
	if result == nil || result.Run.ID == "" {
		return fmt.Errorf("%w: run ID is required", ErrInvalidInput)
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	metadata, _ := json.Marshal(result.Run.Metadata)

	if _, err := dbTx.ExecContext(ctx, r.rebind(`
		INSERT INTO runs (id, snapshot_date, window_days, segment_version, customer_count, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`),
		result.Run.ID, result.Run.SnapshotDate, result.Run.WindowDays,
		result.Run.SegmentVersion, result.Run.CustomerCount,
		result.Run.CreatedAt, string(metadata),
	); err != nil {
		return err
	}

	if err := r.insertFeatures(ctx, dbTx, result.Run.ID, result.Features); err != nil {
		return err
	}
	if err := r.insertSegments(ctx, dbTx, result.Run.ID, result.Segments); err != nil {
		return err
	}
	if err := r.insertRisk(ctx, dbTx, result.Run.ID, result.Risk); err != nil {
		return err
	}
	if err := r.insertDecisions(ctx, dbTx, result.Run.ID, result.Decisions); err != nil {
		return err
	}

	return dbTx.Commit()
}

func (r *SQLRepository) insertFeatures(ctx context.Context, dbTx *sql.Tx, runID string, features []domain.CustomerFeatures) error {
	stmt, err := dbTx.PrepareContext(ctx, r.rebind(`
		INSERT INTO customer_features (
			run_id, customer_id, recency_days, frequency, monetary,
			lifetime_value, spend_trend, frequency_trend
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range features {
		if _, err := stmt.ExecContext(ctx,
			runID, f.CustomerID, f.RecencyDays, f.Frequency,
			f.Monetary, f.LifetimeValue, f.SpendTrend, f.FrequencyTrend,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) insertSegments(ctx context.Context, dbTx *sql.Tx, runID string, segments []domain.SegmentRecord) error {
	stmt, err := dbTx.PrepareContext(ctx, r.rebind(`
		INSERT INTO segments (
			run_id, customer_id, lifecycle_stage, value_segment, segment_label, segment_version
		) VALUES (?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range segments {
		if _, err := stmt.ExecContext(ctx,
			runID, s.CustomerID, s.LifecycleStage, s.ValueSegment,
			s.SegmentLabel, s.SegmentVersion,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) insertRisk(ctx context.Context, dbTx *sql.Tx, runID string, records []domain.RiskRecord) error {
	stmt, err := dbTx.PrepareContext(ctx, r.rebind(`
		INSERT INTO risk_records (run_id, customer_id, risk_score, risk_level, signals)
		VALUES (?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		signals, _ := json.Marshal(rec.Signals)
		if _, err := stmt.ExecContext(ctx,
			runID, rec.CustomerID, rec.RiskScore, rec.RiskLevel, string(signals),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) insertDecisions(ctx context.Context, dbTx *sql.Tx, runID string, decisions []domain.DecisionRecord) error {
	stmt, err := dbTx.PrepareContext(ctx, r.rebind(`
		INSERT INTO decisions (
			run_id, customer_id, recommended_action, action_priority, rule_id,
			action_cost, expected_benefit, estimated_roi, explanation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range decisions {
		if _, err := stmt.ExecContext(ctx,
			runID, d.CustomerID,
			d.Action.RecommendedAction, d.Action.ActionPriority, d.Action.RuleID,
			d.ROI.ActionCost, d.ROI.ExpectedBenefit, d.ROI.EstimatedROI,
			d.Explanation.DecisionExplanation,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetRun retrieves a run summary by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		SELECT id, snapshot_date, window_days, segment_version, customer_count, created_at, metadata
		FROM runs
		WHERE id = ?
	`

	var run domain.Run
	var metadata string
	err := r.db.QueryRowContext(ctx, r.rebind(query), runID).Scan(
		&run.ID, &run.SnapshotDate, &run.WindowDays, &run.SegmentVersion,
		&run.CustomerCount, &run.CreatedAt, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(metadata), &run.Metadata)
	return &run, nil
}

// ListRuns retrieves all run summaries, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	query := `
		SELECT id, snapshot_date, window_days, segment_version, customer_count, created_at, metadata
		FROM runs
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		var run domain.Run
		var metadata string
		if err := rows.Scan(
			&run.ID, &run.SnapshotDate, &run.WindowDays, &run.SegmentVersion,
			&run.CustomerCount, &run.CreatedAt, &metadata,
		); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(metadata), &run.Metadata)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// GetRunResult retrieves a complete run snapshot: the run row plus all four
// derived tables, each sorted by customer ID.
func (r *SQLRepository) GetRunResult(ctx context.Context, runID string) (*domain.RunResult, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &domain.RunResult{Run: *run}

	if result.Features, err = r.queryFeatures(ctx, runID); err != nil {
		return nil, err
	}
	if result.Segments, err = r.querySegments(ctx, runID); err != nil {
		return nil, err
	}
	if result.Risk, err = r.queryRisk(ctx, runID); err != nil {
		return nil, err
	}
	if result.Decisions, err = r.queryDecisions(ctx, runID); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) queryFeatures(ctx context.Context, runID string) ([]domain.CustomerFeatures, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT customer_id, recency_days, frequency, monetary,
			   lifetime_value, spend_trend, frequency_trend
		FROM customer_features
		WHERE run_id = ?
		ORDER BY customer_id
	`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features []domain.CustomerFeatures
	for rows.Next() {
		var f domain.CustomerFeatures
		if err := rows.Scan(
			&f.CustomerID, &f.RecencyDays, &f.Frequency, &f.Monetary,
			&f.LifetimeValue, &f.SpendTrend, &f.FrequencyTrend,
		); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func (r *SQLRepository) querySegments(ctx context.Context, runID string) ([]domain.SegmentRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT customer_id, lifecycle_stage, value_segment, segment_label, segment_version
		FROM segments
		WHERE run_id = ?
		ORDER BY customer_id
	`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []domain.SegmentRecord
	for rows.Next() {
		var s domain.SegmentRecord
		if err := rows.Scan(
			&s.CustomerID, &s.LifecycleStage, &s.ValueSegment,
			&s.SegmentLabel, &s.SegmentVersion,
		); err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

func (r *SQLRepository) queryRisk(ctx context.Context, runID string) ([]domain.RiskRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT customer_id, risk_score, risk_level, signals
		FROM risk_records
		WHERE run_id = ?
		ORDER BY customer_id
	`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.RiskRecord
	for rows.Next() {
		var rec domain.RiskRecord
		var signals string
		if err := rows.Scan(&rec.CustomerID, &rec.RiskScore, &rec.RiskLevel, &signals); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(signals), &rec.Signals)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLRepository) queryDecisions(ctx context.Context, runID string) ([]domain.DecisionRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT customer_id, recommended_action, action_priority, rule_id,
			   action_cost, expected_benefit, estimated_roi, explanation
		FROM decisions
		WHERE run_id = ?
		ORDER BY customer_id
	`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.DecisionRecord
	for rows.Next() {
		var d domain.DecisionRecord
		if err := rows.Scan(
			&d.CustomerID,
			&d.Action.RecommendedAction, &d.Action.ActionPriority, &d.Action.RuleID,
			&d.ROI.ActionCost, &d.ROI.ExpectedBenefit, &d.ROI.EstimatedROI,
			&d.Explanation.DecisionExplanation,
		); err != nil {
			return nil, err
		}
		d.Action.CustomerID = d.CustomerID
		d.ROI.CustomerID = d.CustomerID
		d.Explanation.CustomerID = d.CustomerID
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// DeleteRun removes a run and its derived tables.
func (r *SQLRepository) DeleteRun(ctx context.Context, runID string) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	result, err := dbTx.ExecContext(ctx, r.rebind(`DELETE FROM runs WHERE id = ?`), runID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	for _, table := range []string{"customer_features", "segments", "risk_records", "decisions"} {
		if _, err := dbTx.ExecContext(ctx, r.rebind(`DELETE FROM `+table+` WHERE run_id = ?`), runID); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
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
