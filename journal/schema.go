// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	plan TEXT NOT NULL,
	model TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	runs INTEGER NOT NULL,
	seed INTEGER NOT NULL,
	initial_value REAL NOT NULL,
	survival REAL NOT NULL,
	ruined INTEGER NOT NULL,
	earliest_ruin INTEGER NOT NULL,
	mean_final REAL NOT NULL,
	p10_final REAL NOT NULL,
	p50_final REAL NOT NULL,
	p90_final REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL,
	seed INTEGER NOT NULL,
	periods INTEGER NOT NULL,
	survived INTEGER NOT NULL,
	ruin_period INTEGER NOT NULL,
	final_value REAL NOT NULL,
	min_value REAL NOT NULL,
	total_taxes REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS periods (
	run_id TEXT NOT NULL,
	period INTEGER NOT NULL,
	month DATETIME NOT NULL,
	investor_age REAL NOT NULL,
	cash_inflow REAL NOT NULL,
	living_expenses REAL NOT NULL,
	cash_need REAL NOT NULL,
	target_net REAL NOT NULL,
	pf_begin REAL NOT NULL,
	investment REAL NOT NULL,
	disinvestment REAL NOT NULL,
	gain_or_loss REAL NOT NULL,
	taxes_abs REAL NOT NULL,
	taxes_rel REAL NOT NULL,
	net_proceeds REAL NOT NULL,
	shortfall REAL NOT NULL,
	pf_end REAL NOT NULL,
	log_return REAL NOT NULL,
	share_price REAL NOT NULL,
	available_shares REAL NOT NULL,
	exemption_begin REAL NOT NULL,
	exemption_end REAL NOT NULL,
	loss_pot REAL NOT NULL,
	withheld_taxes REAL NOT NULL,
	PRIMARY KEY (run_id, period)
);

CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch_id);
`
