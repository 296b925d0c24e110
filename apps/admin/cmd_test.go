package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/timetable"
	exportsvc "github.com/trezcool/ratiba/services/export"
	logsvc "github.com/trezcool/ratiba/services/logger"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
	"github.com/trezcool/ratiba/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewTimetableRepository(db)

	// set up services
	logger := logsvc.NewNopLogger()
	validate, _ := testutil.NewValidator()

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		db:       db,
		repo:     repo,
		store:    timetable.NewCatalogStore(repo, nil, logger),
		engine:   timetable.NewEngine(repo, nil, nil, logger),
		validate: validate,
		out:      &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				assert.EqualError(t, err, tt.wantErrStr)
			default:
				require.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Equal(t, tt.wantOut, out.String())
			}
		})
	}
}

// assign puts subject in (day, period) of section, with its default teacher.
func assign(t *testing.T, cli *commandLine, section string, day timetable.Weekday, period, subject string) timetable.Entry {
	t.Helper()
	ctx := context.Background()
	ec, _, err := cli.store.EditContext(ctx, testutil.SchoolID, section, true)
	require.NoError(t, err)
	e, err := cli.engine.AssignSlot(ctx, ec, timetable.AssignRequest{Day: day, PeriodID: period, SubjectID: subject})
	require.NoError(t, err)
	return e
}

func Test_commandLine_root(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol" for "admin"`},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(_ context.Context, command string, _ *sql.DB, _ string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, out, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "rooms", "sql"}},
	})
}

func Test_commandLine_seed(t *testing.T) {
	cli, out := setup(t)

	dir := t.TempDir()
	school := filepath.Join(dir, "school.yaml")
	require.NoError(t, os.WriteFile(school, testutil.SchoolFixture(), 0o600))
	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("school: \"  \"\n"), 0o600))

	runCLITests(t, cli, out, []cliTest{
		{name: "no file", args: []string{"seed"}, wantErr: errHelp},
		{name: "missing file", args: []string{"seed", "-f", filepath.Join(dir, "lol.yaml")}, wantErr: os.ErrNotExist},
		{
			name:    "seed",
			args:    []string{"seed", "-f", school},
			wantOut: "seeded school-1: 2 classes, 3 sections, 5 periods, 4 subjects, 3 teachers, 7 links, 5 assignments\n",
		},
	})

	t.Run("invalid file", func(t *testing.T) {
		var verrs validator.ValidationErrors
		err := cli.run([]string{"admin", "seed", "--file", invalid})
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, "notblank", verrs[0].Tag())
	})

	cat, err := cli.store.LoadCatalog(context.Background(), testutil.SchoolID)
	require.NoError(t, err)
	assert.Len(t, cat.Sections, 3)
	assert.Equal(t, "Grade 1 • B", cat.SectionLabel(testutil.SectionB))
}

func Test_commandLine_publish(t *testing.T) {
	cli, out := setup(t)
	testutil.SeedSchool(t, cli.repo)

	assign(t, cli, testutil.SectionA, timetable.Monday, testutil.P1, testutil.Maths)
	assign(t, cli, testutil.SectionA, timetable.Tuesday, testutil.P2, testutil.Physics)

	runCLITests(t, cli, out, []cliTest{
		{name: "no flags", args: []string{"publish"}, wantErrStr: `required flag(s) "school", "section" not set`},
		{name: "no section", args: []string{"unpublish", "--school", testutil.SchoolID}, wantErrStr: `required flag(s) "section" not set`},
		{name: "unknown section", args: []string{"publish", "--school", testutil.SchoolID, "--section", "lol"}, wantErr: timetable.ErrInvalidTarget},
		{
			name:    "publish",
			args:    []string{"publish", "--school", testutil.SchoolID, "--section", testutil.SectionA},
			wantOut: "published 2 entries of section \"sec-a\"\n",
		},
		{
			name:    "publish again",
			args:    []string{"publish", "--school", testutil.SchoolID, "--section", testutil.SectionA},
			wantOut: "published 2 entries of section \"sec-a\"\n",
		},
		{
			name:    "unpublish",
			args:    []string{"unpublish", "--school", testutil.SchoolID, "--section", testutil.SectionA},
			wantOut: "unpublished 2 entries of section \"sec-a\"\n",
		},
	})

	entries, err := cli.repo.EntriesForSection(context.Background(), testutil.SectionA)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.IsPublished)
	}
}

func Test_commandLine_conflicts(t *testing.T) {
	cli, out := setup(t)
	testutil.SeedSchool(t, cli.repo)

	runCLITests(t, cli, out, []cliTest{
		{name: "no school", args: []string{"conflicts"}, wantErrStr: `required flag(s) "school" not set`},
		{
			name:    "none",
			args:    []string{"conflicts", "--school", testutil.SchoolID},
			wantOut: "0 entries in conflict: 0 teacher clashes, 0 room clashes\n",
		},
	})

	assign(t, cli, testutil.SectionA, timetable.Monday, testutil.P1, testutil.Maths) // alice
	assign(t, cli, testutil.SectionC, timetable.Monday, testutil.P1, testutil.Maths) // alice
	assign(t, cli, testutil.SectionB, timetable.Monday, testutil.P2, testutil.Maths) // bob

	t.Run("text", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "conflicts", "--school", testutil.SchoolID}))
		lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
		require.Len(t, lines, 2)
		assert.Equal(t, "2 entries in conflict: 1 teacher clashes, 0 room clashes", string(lines[0]))
		assert.Regexp(t, `^Monday\s+Period 1\s+teacher\s+Alice Mwamba\s+Grade 1 • A <> Grade 2 • A$`, string(lines[1]))
	})

	t.Run("json", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "conflicts", "--school", testutil.SchoolID, "--json"}))
		assert.Contains(t, out.String(), `"teacher": 1`)
		assert.Contains(t, out.String(), `"value": "alice"`)
	})
}

func Test_commandLine_export(t *testing.T) {
	cli, out := setup(t)
	testutil.SeedSchool(t, cli.repo)
	assign(t, cli, testutil.SectionA, timetable.Monday, testutil.P1, testutil.Maths)

	const header = "Day,Period,Start,End,Subject,Teacher,Room\n"
	args := func(extra ...string) []string {
		return append([]string{"export", "--school", testutil.SchoolID, "--section", testutil.SectionA}, extra...)
	}
	file := filepath.Join(t.TempDir(), "grade-1-a.xlsx")

	runCLITests(t, cli, out, []cliTest{
		{name: "no flags", args: []string{"export"}, wantErrStr: `required flag(s) "school", "section" not set`},
		{name: "unknown format", args: args("--format", "docx"), wantErr: exportsvc.ErrUnknownFormat},
		{name: "unknown section", args: []string{"export", "--school", testutil.SchoolID, "--section", "lol"}, wantErr: timetable.ErrNotFound},
		{name: "csv", args: args(), wantOut: header + "Monday,Period 1,08:00,08:45,Mathematics,Alice Mwamba,\n"},
		{name: "published only", args: args("--published-only"), wantOut: header},
		{name: "xlsx to file", args: args("--format", "XLSX", "-o", file), wantOut: "exported 1 entries of Grade 1 • A to " + file + "\n"},
	})

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
