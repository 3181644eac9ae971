package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the repo-relative location of the SQL files; used by create and validate.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source points goose at a set of migrations. A nil FS reads Dir from disk.
type Source struct {
	FS  fs.FS
	Dir string
}

// Embedded returns the migrations compiled into the binary.
func Embedded() Source {
	return Source{FS: embedded, Dir: "migrations"}
}

// Disk returns migrations read from dir at run time.
func Disk(dir string) Source {
	return Source{Dir: dir}
}

func (s Source) String() string {
	if s.FS != nil {
		return "embedded:" + s.Dir
	}
	return s.Dir
}

// Versions validates the source and returns its migration versions in order.
func (s Source) Versions() ([]int64, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.FS == nil {
		return Validate(os.DirFS(s.Dir), ".")
	}
	return Validate(s.FS, s.Dir)
}

func (s Source) validate() error {
	if s.Dir == "" {
		return fmt.Errorf("migration dir is required")
	}
	return nil
}

// prepare points goose at the source. goose keeps this as package state, so
// callers must not run two sources concurrently.
func (s Source) prepare() error {
	if err := s.validate(); err != nil {
		return err
	}
	goose.SetBaseFS(s.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}
