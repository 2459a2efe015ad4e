package store

// Schema definitions for the Shrike result store.
// Compatible with both SQLite and PostgreSQL.

const schemaResults = `
CREATE TABLE IF NOT EXISTS results (
    id TEXT PRIMARY KEY,
    total INTEGER NOT NULL,
    predicted_frauds INTEGER NOT NULL,
    legit_count INTEGER NOT NULL,
    avg_prob REAL NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
`

const schemaPredictions = `
CREATE TABLE IF NOT EXISTS predictions (
    result_id TEXT NOT NULL,
    row_index INTEGER NOT NULL,
    subscriber_id TEXT NOT NULL,
    fraud_probability REAL NOT NULL,
    predicted_fraud INTEGER NOT NULL,
    classification TEXT NOT NULL,
    fields TEXT NOT NULL,
    PRIMARY KEY (result_id, row_index)
);

CREATE INDEX IF NOT EXISTS idx_predictions_result ON predictions(result_id);
`

const schemaReviewRules = `
CREATE TABLE IF NOT EXISTS review_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaResults,
		schemaPredictions,
		schemaReviewRules,
	}
}
