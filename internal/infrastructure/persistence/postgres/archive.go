package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

// ArchiveKey identifies the archived timetable of one element.
type ArchiveKey struct {
	School      string
	ElementType untis.ElementType
	ElementID   int
}

func (k ArchiveKey) String() string {
	return fmt.Sprintf("%s/%s:%d", k.School, k.ElementType, k.ElementID)
}

// TimetableArchive persists timetable groups per element and date.
type TimetableArchive struct {
	conn *Connection
}

// NewTimetableArchive creates a new archive on conn.
func NewTimetableArchive(conn *Connection) *TimetableArchive {
	return &TimetableArchive{conn: conn}
}

// Migrate applies the archive schema.
func (a *TimetableArchive) Migrate(ctx context.Context) ([]int, error) {
	return NewMigrator(a.conn).Migrate(ctx)
}

// SaveGroups replaces the archived groups of key within period by groups
// and records the run, all in one transaction.
func (a *TimetableArchive) SaveGroups(ctx context.Context, key ArchiveKey, period untis.DateTimeRange, groups []untis.TimetableGroup) error {
	rows := make([]groupRow, 0, len(groups))
	for _, g := range groups {
		row, err := toGroupRow(g)
		if err != nil {
			return fmt.Errorf("save groups %s: %w", key, err)
		}
		rows = append(rows, row)
	}

	err := a.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM timetable_groups
			WHERE school = $1 AND element_type = $2 AND element_id = $3
			  AND date BETWEEN $4 AND $5
		`, key.School, int16(key.ElementType), key.ElementID, period.Start, period.End); err != nil {
			return fmt.Errorf("delete period: %w", err)
		}

		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(`
				INSERT INTO timetable_groups
					(school, element_type, element_id, date, start_time, end_time, lesson_numbers, timetables)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, key.School, int16(key.ElementType), key.ElementID, r.Date, r.StartTime, r.EndTime, r.LessonNumbers, r.Timetables)
		}
		batch.Queue(`
			INSERT INTO archive_runs (school, element_type, element_id, start_date, end_date, group_count)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, key.School, int16(key.ElementType), key.ElementID, period.Start, period.End, len(rows))

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert batch item %d: %w", i, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return fmt.Errorf("save groups %s: %w", key, err)
	}
	return nil
}

// ListGroups returns the archived groups of key within period ordered by
// date and start time.
func (a *TimetableArchive) ListGroups(ctx context.Context, key ArchiveKey, period untis.DateTimeRange) ([]untis.TimetableGroup, error) {
	return listGroups(ctx, a.conn, key, period)
}

func listGroups(ctx context.Context, q Querier, key ArchiveKey, period untis.DateTimeRange) ([]untis.TimetableGroup, error) {
	rows, err := q.Query(ctx, `
		SELECT date, start_time, end_time, lesson_numbers, timetables
		FROM timetable_groups
		WHERE school = $1 AND element_type = $2 AND element_id = $3
		  AND date BETWEEN $4 AND $5
		ORDER BY date, start_time, id
	`, key.School, int16(key.ElementType), key.ElementID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list groups %s: %w", key, err)
	}
	defer rows.Close()

	groups := []untis.TimetableGroup{}
	for rows.Next() {
		var r groupRow
		if err := rows.Scan(&r.Date, &r.StartTime, &r.EndTime, &r.LessonNumbers, &r.Timetables); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g, err := r.toGroup()
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups %s: %w", key, err)
	}
	return groups, nil
}

// LastRun returns when key was last archived. ok is false if never.
func (a *TimetableArchive) LastRun(ctx context.Context, key ArchiveKey) (finishedAt time.Time, ok bool, err error) {
	err = a.conn.QueryRow(ctx, `
		SELECT finished_at FROM archive_runs
		WHERE school = $1 AND element_type = $2 AND element_id = $3
		ORDER BY finished_at DESC
		LIMIT 1
	`, key.School, int16(key.ElementType), key.ElementID).Scan(&finishedAt)
	if IsNoRows(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last run %s: %w", key, err)
	}
	return finishedAt, true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type groupRow struct {
	Date          time.Time
	StartTime     int16
	EndTime       int16
	LessonNumbers []int32
	Timetables    []byte
}

func toGroupRow(g untis.TimetableGroup) (groupRow, error) {
	lessons, err := json.Marshal(g.Timetables)
	if err != nil {
		return groupRow{}, fmt.Errorf("encode lessons: %w", err)
	}
	numbers := make([]int32, len(g.LessonNumbers))
	for i, n := range g.LessonNumbers {
		numbers[i] = int32(n)
	}
	return groupRow{
		Date:          untisdate.Date(g.Date),
		StartTime:     int16(g.StartTime),
		EndTime:       int16(g.EndTime),
		LessonNumbers: numbers,
		Timetables:    lessons,
	}, nil
}

func (r groupRow) toGroup() (untis.TimetableGroup, error) {
	var lessons []untis.Timetable
	if err := json.Unmarshal(r.Timetables, &lessons); err != nil {
		return untis.TimetableGroup{}, fmt.Errorf("decode lessons: %w", err)
	}
	numbers := make([]int, len(r.LessonNumbers))
	for i, n := range r.LessonNumbers {
		numbers[i] = int(n)
	}
	return untis.TimetableGroup{
		Date:          untisdate.FromDate(r.Date),
		StartTime:     int(r.StartTime),
		EndTime:       int(r.EndTime),
		LessonNumbers: numbers,
		Timetables:    lessons,
	}, nil
}
