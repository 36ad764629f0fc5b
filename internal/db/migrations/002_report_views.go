package migrations

// ReportViews adds read-side views over the latest report per pilot
var ReportViews = &Migration{
	ID:   "002_report_views",
	Name: "002_report_views",
	UpSQL: `
	-- Latest report per pilot and scope
	CREATE OR REPLACE VIEW latest_coverage_reports AS
	SELECT DISTINCT ON (pilot_id, scope) *
	FROM coverage_reports
	ORDER BY pilot_id, scope, created_at DESC;

	-- How many pilots have visited each facility, from their latest reports
	CREATE OR REPLACE VIEW facility_popularity AS
	SELECT
		v.facility_id,
		COUNT(DISTINCT r.pilot_id) AS pilots,
		SUM(v.total) AS total_visits,
		MIN(v.first_visit) AS first_visit
	FROM facility_visits v
	JOIN latest_coverage_reports r ON r.id = v.report_id
	GROUP BY v.facility_id;

	-- Daily roll-up of pipeline statistics
	CREATE OR REPLACE VIEW system_stats_daily AS
	SELECT
		date_trunc('day', time) AS day,
		MAX(imports_received) AS imports_received,
		MAX(imports_parsed) AS imports_parsed,
		MAX(imports_failed) AS imports_failed,
		MAX(flights_parsed) AS flights_parsed,
		MAX(reports_stored) AS reports_stored
	FROM system_stats
	GROUP BY day;
	`,
	DownSQL: `
	DROP VIEW IF EXISTS system_stats_daily;
	DROP VIEW IF EXISTS facility_popularity;
	DROP VIEW IF EXISTS latest_coverage_reports;
	`,
}
