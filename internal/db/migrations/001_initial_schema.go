package migrations

// InitialSchema creates the import, report and statistics tables
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		-- Raw logbook exports received by the importer
		CREATE TABLE IF NOT EXISTS logbook_imports (
			id TEXT PRIMARY KEY,
			pilot_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			flight_count INTEGER NOT NULL DEFAULT 0,
			csv_bytes INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_logbook_imports_pilot ON logbook_imports (pilot_id, received_at DESC);

		-- One row per computed coverage report
		CREATE TABLE IF NOT EXISTS coverage_reports (
			id TEXT PRIMARY KEY,
			import_id TEXT REFERENCES logbook_imports (id) ON DELETE SET NULL,
			pilot_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			flight_count INTEGER NOT NULL,
			visited_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			ratio DOUBLE PRECISION NOT NULL,
			visited_ids TEXT[] NOT NULL DEFAULT '{}',
			most_frequent TEXT NOT NULL DEFAULT '',
			most_visited_state TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_coverage_reports_pilot_scope ON coverage_reports (pilot_id, scope, created_at DESC);

		-- Selected evidence per facility of a report
		CREATE TABLE IF NOT EXISTS facility_visits (
			report_id TEXT NOT NULL REFERENCES coverage_reports (id) ON DELETE CASCADE,
			facility_id TEXT NOT NULL,
			total INTEGER NOT NULL,
			endpoint_from INTEGER NOT NULL,
			endpoint_to INTEGER NOT NULL,
			notes_match INTEGER NOT NULL,
			first_visit TIMESTAMPTZ,
			PRIMARY KEY (report_id, facility_id)
		);

		CREATE INDEX IF NOT EXISTS idx_facility_visits_facility ON facility_visits (facility_id);

		-- Pipeline statistics snapshots
		CREATE TABLE IF NOT EXISTS system_stats (
			time TIMESTAMPTZ NOT NULL,
			imports_received BIGINT NOT NULL,
			imports_parsed BIGINT NOT NULL,
			imports_failed BIGINT NOT NULL,
			flights_parsed BIGINT NOT NULL,
			reports_stored BIGINT NOT NULL,
			facilities_matched BIGINT NOT NULL,
			processing_time_ms BIGINT NOT NULL,
			uptime_seconds BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_system_stats_time ON system_stats (time DESC);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS system_stats;
		DROP TABLE IF EXISTS facility_visits;
		DROP TABLE IF EXISTS coverage_reports;
		DROP TABLE IF EXISTS logbook_imports;
	`,
}
