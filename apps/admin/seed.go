package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core/timetable"
)

func (cli *commandLine) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed -f FILE",
		Short: "Load the catalog of a school from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.seed(cmd, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file describing the school")
	return cmd
}

func (cli *commandLine) seed(cmd *cobra.Command, path string) error {
	fd, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening seed file")
	}
	defer func() { _ = fd.Close() }()

	f, err := timetable.ReadSeedFile(fd)
	if err != nil {
		return err
	}
	if err = f.Validate(cli.validate); err != nil {
		return err
	}

	sum, err := timetable.Seed(cmd.Context(), cli.repo, f)
	if err != nil {
		return errors.Wrapf(err, "seeding school %q", f.School)
	}
	if err = cli.store.Refresh(cmd.Context(), f.School); err != nil {
		return err
	}
	cli.engine.CatalogChanged(cmd.Context(), f.School)

	fmt.Fprintf(cmd.OutOrStdout(),
		"seeded %s: %d classes, %d sections, %d periods, %d subjects, %d teachers, %d links, %d assignments\n",
		f.School, sum.Classes, sum.Sections, sum.Periods, sum.Subjects, sum.Teachers, sum.Links, sum.Assignments,
	)
	return nil
}
