package postgres

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_timetable_groups",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_archive_runs",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: TIMETABLE GROUPS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS timetable_groups (
    id BIGSERIAL PRIMARY KEY,
    school VARCHAR(100) NOT NULL,
    element_type SMALLINT NOT NULL,
    element_id INTEGER NOT NULL,
    date DATE NOT NULL,
    start_time SMALLINT NOT NULL,
    end_time SMALLINT NOT NULL,
    lesson_numbers INTEGER[] NOT NULL DEFAULT '{}',
    timetables JSONB NOT NULL,
    archived_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_element_type CHECK (element_type BETWEEN 1 AND 5),
    CONSTRAINT valid_times CHECK (start_time <= end_time)
);

-- Lookup and ordering by (school, element, date, start)
CREATE INDEX IF NOT EXISTS idx_timetable_groups_element_date
    ON timetable_groups(school, element_type, element_id, date, start_time);
`

const migration001Down = `
DROP TABLE IF EXISTS timetable_groups;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ARCHIVE RUNS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS archive_runs (
    id BIGSERIAL PRIMARY KEY,
    school VARCHAR(100) NOT NULL,
    element_type SMALLINT NOT NULL,
    element_id INTEGER NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    group_count INTEGER NOT NULL,
    finished_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_archive_runs_element
    ON archive_runs(school, element_type, element_id, finished_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS archive_runs;
`
