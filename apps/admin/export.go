package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core/timetable"
	exportsvc "github.com/trezcool/ratiba/services/export"
)

func (cli *commandLine) exportCmd() *cobra.Command {
	var (
		school, section string
		format, out     string
		publishedOnly   bool
		days            []int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the timetable of a section as csv, xlsx or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := exportsvc.ParseFormat(format)
			if err != nil {
				return err
			}

			cat, err := cli.store.LoadCatalog(cmd.Context(), school)
			if err != nil {
				return err
			}
			sc, err := cli.store.LoadSectionCatalog(cmd.Context(), school, section)
			if err != nil {
				return err
			}
			tt := exportsvc.Timetable{
				Title:       cat.SectionLabel(sc.Section.ID),
				Days:        timetable.Weekdays(days),
				Periods:     cat.Periods,
				Entries:     timetable.VisibleEntries(sc.Entries, !publishedOnly),
				TeacherName: cat.TeacherName,
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				fd, err := os.Create(out)
				if err != nil {
					return errors.Wrap(err, "creating export file")
				}
				defer func() { _ = fd.Close() }()
				w = fd
			}
			if err = exportsvc.Render(w, f, tt); err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries of %s to %s\n", len(tt.Entries), tt.Title, out)
			}
			return nil
		},
	}
	schoolSectionFlags(cmd, &school, &section)
	cmd.Flags().StringVar(&format, "format", string(exportsvc.FormatCSV), "csv, xlsx or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	cmd.Flags().BoolVar(&publishedOnly, "published-only", false, "leave drafts out, as readers see it")
	cmd.Flags().IntSliceVar(&days, "days", cli.days, "weekdays to print, 0 = Monday")
	return cmd
}
