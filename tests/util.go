package testutil

import (
	"bytes"
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/storage/database"
)

// IDs of the school described by fixtures/school.yaml
const (
	SchoolID = "school-1"

	ClassG1 = "grade-1"
	ClassG2 = "grade-2"

	SectionA = "sec-a" // Grade 1 • A
	SectionB = "sec-b" // Grade 1 • B
	SectionC = "sec-c" // Grade 2 • A

	P1    = "p1"
	P2    = "p2"
	Break = "brk"
	P3    = "p3"
	P4    = "p4"

	Maths   = "maths"
	Physics = "physics"
	Chem    = "chem"
	Art     = "art"

	Alice = "alice"
	Bob   = "bob"
	Carol = "carol"
)

//go:embed fixtures/school.yaml
var schoolFixture []byte

// SchoolFixture returns the raw YAML of the test school.
func SchoolFixture() []byte {
	return schoolFixture
}

// SeedSchool writes the test school through repo.
func SeedSchool(t *testing.T, repo timetable.CatalogRepository) timetable.SeedSummary {
	t.Helper()
	f, err := timetable.ReadSeedFile(bytes.NewReader(schoolFixture))
	if err != nil {
		t.Fatalf("SeedSchool() failed: %v", err)
	}
	sum, err := timetable.Seed(context.Background(), repo, f)
	if err != nil {
		t.Fatalf("SeedSchool() failed: %v", err)
	}
	return sum
}

// NewValidator returns a validator with the core and timetable validators registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	core.InitValidators(validate, translator)
	timetable.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens a migrated SQLite database living in a temporary directory.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// PostgresDB opens the database at TEST_DATABASE_URL, migrated and emptied. The test is skipped when unset.
func PostgresDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Open(database.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("PostgresDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err = database.Ping(ctx, db); err != nil {
		t.Fatalf("PostgresDB() failed: %v", err)
	}
	if err = database.Migrate(ctx, db); err != nil {
		t.Fatalf("PostgresDB() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

// ResetDB deletes all rows of all tables.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	tables := []string{
		"timetable_entries", "teacher_assignments", "section_subjects",
		"sections", "classes", "periods", "subjects", "teachers",
	}
	for _, tbl := range tables {
		if _, err := db.Exec("DELETE FROM " + tbl); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}

// StrPtr returns a pointer to s, even when blank.
func StrPtr(s string) *string {
	return &s
}
