package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roosterhub/untis-connector/internal/application/query"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/export"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/postgres"
	"github.com/roosterhub/untis-connector/internal/infrastructure/service"
	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

// timetableOptions holds the flags of the timetable command.
type timetableOptions struct {
	elementType string
	id          int
	name        string
	from        string
	to          string
	grouped     bool
	timegrid    bool
	icsFile     string
	archive     bool
	fromArchive bool
}

var ttOpts timetableOptions

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Show the timetable of a class, teacher, subject, room or student",
	Long: `Fetch the timetable of one element over a date range. Ranges that span
several school years are split per school year, and a class addressed by id
is followed across years by its name.

With --grouped adjacent lessons of the same period family (lesson number
divided by 100) on the same day are merged into one block. --ics and
--archive imply --grouped.

With --from-archive the blocks are read from the archive database instead
of WebUntis, together with the time of the last archive run.`,
	Example: `  untisctl timetable --type class --name 5a --from 2019-09-02 --to 2019-09-06
  untisctl timetable --type teacher --id 7 --ics teacher.ics
  untisctl timetable --type class --id 42 --from-archive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := ttOpts.query(time.Now())
		if err != nil {
			return err
		}
		if (ttOpts.archive || ttOpts.fromArchive) && ttOpts.id == 0 {
			return errors.New("--archive and --from-archive need --id")
		}

		ctx := cmd.Context()
		if ttOpts.fromArchive {
			return showArchived(ctx, q)
		}
		grouped := ttOpts.grouped || ttOpts.icsFile != "" || ttOpts.archive
		if !grouped {
			result, err := rt.Sessions.Timetables(ctx, schoolName, q)
			if err != nil {
				return fmt.Errorf("could not fetch timetable: %w", err)
			}
			printTimetables(q, result)
			return nil
		}

		result, err := rt.Sessions.TimetableGroups(ctx, schoolName, query.GetTimetableGroupsQuery{
			GetTimetablesQuery: q,
			UseTimegrid:        ttOpts.timegrid,
		})
		if err != nil {
			return fmt.Errorf("could not fetch timetable: %w", err)
		}
		printGroups(q, result)

		if ttOpts.icsFile != "" {
			if err := writeICSFile(ttOpts.icsFile, q, result.Groups); err != nil {
				return err
			}
			fmt.Printf("Exported %d blocks to %s\n", len(result.Groups), ttOpts.icsFile)
		}
		if ttOpts.archive {
			if err := archiveGroups(ctx, q, result.Groups); err != nil {
				return err
			}
			fmt.Printf("Archived %d blocks\n", len(result.Groups))
		}
		return nil
	},
}

// query builds the timetable query. Missing dates default to the week
// starting today.
func (o timetableOptions) query(now time.Time) (query.GetTimetablesQuery, error) {
	typ, err := untis.ParseElementType(o.elementType)
	if err != nil {
		return query.GetTimetablesQuery{}, err
	}

	start := untisdate.StartOfDay(now)
	if o.from != "" {
		if start, err = untisdate.ParseISODate(o.from); err != nil {
			return query.GetTimetablesQuery{}, fmt.Errorf("--from: %w", err)
		}
	}
	end := start.AddDate(0, 0, 6)
	if o.to != "" {
		if end, err = untisdate.ParseISODate(o.to); err != nil {
			return query.GetTimetablesQuery{}, fmt.Errorf("--to: %w", err)
		}
	}

	q := query.GetTimetablesQuery{
		ElementType: typ,
		KeyType:     untis.KeyID,
		ElementID:   o.id,
		StartDate:   start,
		EndDate:     end,
	}
	switch {
	case o.name != "":
		q.KeyType = untis.KeyName
		q.ElementName = o.name
	case o.id <= 0:
		return query.GetTimetablesQuery{}, errors.New("one of --id or --name is required")
	}
	return q, nil
}

func elementLabel(q query.GetTimetablesQuery) string {
	if q.KeyType == untis.KeyName {
		return typeTitle(q.ElementType) + " " + q.ElementName
	}
	return fmt.Sprintf("%s %d", typeTitle(q.ElementType), q.ElementID)
}

func printHeader(q query.GetTimetablesQuery, r *query.GetTimetablesResult) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Timetable for %s, %s to %s",
		elementLabel(q), untisdate.FormatISODate(q.StartDate), untisdate.FormatISODate(q.EndDate))))

	for _, p := range r.UnresolvedPeriods {
		fmt.Println(warnStyle.Render(fmt.Sprintf("No matching class for %s to %s, used id %d",
			untisdate.FormatISODate(p.Start), untisdate.FormatISODate(p.End), p.ElementID)))
	}
}

func printTimetables(q query.GetTimetablesQuery, r *query.GetTimetablesResult) {
	printHeader(q, r)
	if len(r.Timetables) == 0 {
		fmt.Println("No lessons in this period.")
		return
	}

	day := 0
	for _, t := range r.Timetables {
		if t.Date != day {
			day = t.Date
			fmt.Println(dayStyle.Render(formatDate(day)))
		}
		fmt.Printf("  %s  %s\n", formatRange(t.StartTime, t.EndTime), lessonLine(t))
		if note := noteLine(t); note != "" {
			fmt.Printf("               %s\n", infoStyle.Render(note))
		}
	}
}

func printGroups(q query.GetTimetablesQuery, r *query.GetTimetableGroupsResult) {
	printHeader(q, r.GetTimetablesResult)
	if len(r.Groups) == 0 {
		fmt.Println("No lessons in this period.")
		return
	}

	day := 0
	for _, g := range r.Groups {
		if g.Date != day {
			day = g.Date
			fmt.Println(dayStyle.Render(formatDate(day)))
		}
		fmt.Printf("  %s  %s\n", formatRange(g.StartTime, g.EndTime), lessonLine(g.Timetables[0]))
		if len(g.Timetables) > 1 {
			fmt.Printf("               %s\n", dimStyle.Render(fmt.Sprintf("%d periods", len(g.Timetables))))
		}
		if note := noteLine(g.Timetables[0]); note != "" {
			fmt.Printf("               %s\n", infoStyle.Render(note))
		}
	}
}

func writeICSFile(path string, q query.GetTimetablesQuery, groups []untis.TimetableGroup) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	err = export.WriteICS(file, groups, rt.Config.App.Location, export.WithCalendarName(elementLabel(q)))
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to generate ICS: %w", err)
	}
	return nil
}

func archiveGroups(ctx context.Context, q query.GetTimetablesQuery, groups []untis.TimetableGroup) error {
	archive, err := rt.Archive(ctx)
	if err != nil {
		return err
	}
	school, err := rt.Sessions.SchoolName(schoolName)
	if err != nil {
		return err
	}
	key := postgres.ArchiveKey{School: school, ElementType: q.ElementType, ElementID: q.ElementID}
	return archive.SaveGroups(ctx, key, untis.NewDateTimeRange(q.StartDate, q.EndDate), groups)
}

func showArchived(ctx context.Context, q query.GetTimetablesQuery) error {
	archive, err := rt.Archive(ctx)
	if err != nil {
		return err
	}
	archived, err := service.NewArchive(archive, rt.Sessions).Timetable(ctx, schoolName, q.ElementType, q.ElementID,
		untis.NewDateTimeRange(q.StartDate, q.EndDate))
	if err != nil {
		return fmt.Errorf("could not read archive: %w", err)
	}

	printGroups(q, &query.GetTimetableGroupsResult{
		GetTimetablesResult: &query.GetTimetablesResult{},
		Groups:              archived.Groups,
	})
	fmt.Println(dimStyle.Render(lastRunLine(archived.LastRun, rt.Config.App.Location)))
	return nil
}

func lastRunLine(lastRun time.Time, loc *time.Location) string {
	if lastRun.IsZero() {
		return "Never archived."
	}
	if loc == nil {
		loc = time.UTC
	}
	return "Archived at " + lastRun.In(loc).Format("2006-01-02 15:04")
}

func init() {
	rootCmd.AddCommand(timetableCmd)

	f := timetableCmd.Flags()
	f.StringVarP(&ttOpts.elementType, "type", "t", "class", "Element type (class, teacher, subject, room, student)")
	f.IntVar(&ttOpts.id, "id", 0, "Element id")
	f.StringVarP(&ttOpts.name, "name", "n", "", "Element name, e.g. 5a")
	f.StringVarP(&ttOpts.from, "from", "f", "", "First day (YYYY-MM-DD), defaults to today")
	f.StringVar(&ttOpts.to, "to", "", "Last day (YYYY-MM-DD), defaults to six days after --from")
	f.BoolVarP(&ttOpts.grouped, "grouped", "g", false, "Merge adjacent lessons of the same period family into blocks")
	f.BoolVar(&ttOpts.timegrid, "timegrid", false, "Merge lessons across breaks of the school's timegrid")
	f.StringVarP(&ttOpts.icsFile, "ics", "o", "", "Write the timetable to this .ics file")
	f.BoolVar(&ttOpts.archive, "archive", false, "Save the timetable in the archive database")
	f.BoolVar(&ttOpts.fromArchive, "from-archive", false, "Read the timetable from the archive database")

	timetableCmd.MarkFlagsMutuallyExclusive("id", "name")
	timetableCmd.MarkFlagsMutuallyExclusive("from-archive", "archive")
	timetableCmd.MarkFlagsMutuallyExclusive("from-archive", "ics")
}
