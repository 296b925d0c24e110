package main

import (
	"context"
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core/timetable"
)

var errHelp = errors.New("help provided")

const (
	schoolFlag  = "school"
	sectionFlag = "section"
)

type commandLine struct {
	db       *sqlx.DB
	repo     timetable.Repository
	store    *timetable.CatalogStore
	engine   *timetable.Engine
	validate *validator.Validate
	days     []int // default export weekdays
	out      io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Ratiba administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.seedCmd(),
		cli.conflictsCmd(),
		cli.exportCmd(),
		cli.publishCmd(true),
		cli.publishCmd(false),
	)
	return root
}

// run executes the command line `args`, program name included.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// schoolSectionFlags registers the --school and --section flags, both required.
func schoolSectionFlags(cmd *cobra.Command, school, section *string) {
	cmd.Flags().StringVar(school, schoolFlag, "", "school ID")
	cmd.Flags().StringVar(section, sectionFlag, "", "section ID")
	_ = cmd.MarkFlagRequired(schoolFlag)
	_ = cmd.MarkFlagRequired(sectionFlag)
}
