package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core/timetable"
)

type clash struct {
	day      timetable.Weekday
	order    int
	period   string
	typ      timetable.ConflictType
	value    string
	sections [2]string
}

func (cli *commandLine) conflictsCmd() *cobra.Command {
	var (
		school string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List the teacher and room double-bookings of a school",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, entries, err := cli.engine.SchoolConflicts(cmd.Context(), school)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			cat, err := cli.store.LoadCatalog(cmd.Context(), school)
			if err != nil {
				return err
			}
			printConflicts(cmd, cat, report, entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&school, schoolFlag, "", "school ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	_ = cmd.MarkFlagRequired(schoolFlag)
	return cmd
}

// printConflicts lists each conflicting pair once, ordered by slot.
func printConflicts(cmd *cobra.Command, cat timetable.Catalog, report timetable.Report, entries []timetable.Entry) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d entries in conflict: %d teacher clashes, %d room clashes\n", report.Entries, report.Teacher, report.Room)
	if report.Entries == 0 {
		return
	}

	periods := timetable.NewPeriodIndex(cat.Periods)
	var clashes []clash
	for _, e := range entries {
		for _, cf := range report.Conflicts[e.ID] {
			if e.ID > cf.EntryID { // the other side lists it too
				continue
			}
			c := clash{
				day:      e.Day,
				order:    periods[e.PeriodID].SortOrder,
				period:   periods[e.PeriodID].Label,
				typ:      cf.Type,
				value:    cf.Value,
				sections: [2]string{cat.SectionLabel(e.SectionID), cat.SectionLabel(cf.SectionID)},
			}
			if c.typ == timetable.TeacherConflict {
				c.value = cat.TeacherName(cf.Value)
			}
			sort.Strings(c.sections[:])
			clashes = append(clashes, c)
		}
	}
	sort.Slice(clashes, func(i, j int) bool {
		a, b := clashes[i], clashes[j]
		switch {
		case a.day != b.day:
			return a.day < b.day
		case a.order != b.order:
			return a.order < b.order
		case a.typ != b.typ:
			return a.typ < b.typ
		case a.sections[0] != b.sections[0]:
			return a.sections[0] < b.sections[0]
		default:
			return a.sections[1] < b.sections[1]
		}
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range clashes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s <> %s\n", c.day, c.period, c.typ, c.value, c.sections[0], c.sections[1])
	}
	_ = tw.Flush()
}
