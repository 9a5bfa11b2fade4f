package repository

// Schema definitions for Kestrel's run-snapshot store.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    amount REAL NOT NULL,
    product_id TEXT,
    category TEXT,
    channel TEXT,
    region TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
`

const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    snapshot_date TIMESTAMP NOT NULL,
    window_days INTEGER NOT NULL,
    segment_version TEXT NOT NULL,
    customer_count INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

const schemaFeatures = `
CREATE TABLE IF NOT EXISTS customer_features (
    run_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    recency_days INTEGER NOT NULL,
    frequency INTEGER NOT NULL,
    monetary REAL NOT NULL,
    lifetime_value REAL NOT NULL,
    spend_trend REAL NOT NULL,
    frequency_trend REAL NOT NULL,
    PRIMARY KEY (run_id, customer_id)
);
`

const schemaSegments = `
CREATE TABLE IF NOT EXISTS segments (
    run_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    lifecycle_stage TEXT NOT NULL,
    value_segment TEXT NOT NULL,
    segment_label TEXT NOT NULL,
    segment_version TEXT NOT NULL,
    PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS idx_segments_stage ON segments(run_id, lifecycle_stage);
`

const schemaRisk = `
CREATE TABLE IF NOT EXISTS risk_records (
    run_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    risk_score REAL NOT NULL,
    risk_level TEXT NOT NULL,
    signals TEXT NOT NULL,
    PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS idx_risk_level ON risk_records(run_id, risk_level);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    run_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    recommended_action TEXT NOT NULL,
    action_priority TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    action_cost REAL NOT NULL,
    expected_benefit REAL NOT NULL,
    estimated_roi REAL NOT NULL,
    explanation TEXT NOT NULL,
    PRIMARY KEY (run_id, customer_id)
);

CREATE INDEX IF NOT EXISTS idx_decisions_priority ON decisions(run_id, action_priority);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRuns,
		schemaFeatures,
		schemaSegments,
		schemaRisk,
		schemaDecisions,
	}
}
