package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the on-disk location of the SQL files, used by create and
// validate when run from the repository root.
const DefaultDir = "pkg/migrate/migrations"

const (
	embeddedDir = "migrations"
	dialect     = "postgres"
)

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps dialect and base FS as package globals.
var gooseMu sync.Mutex

// Source locates a set of goose SQL migrations.
type Source struct {
	fsys fs.FS
	dir  string
}

// Embedded returns the migrations compiled into the binary.
func Embedded() Source {
	return Source{fsys: embedded, dir: embeddedDir}
}

// Disk reads migrations from a directory on the local filesystem.
func Disk(dir string) Source {
	return Source{fsys: os.DirFS(dir), dir: "."}
}

// SourceFor picks the embedded set unless dir points somewhere else.
func SourceFor(dir string) Source {
	if dir == "" || dir == DefaultDir {
		return Embedded()
	}
	return Disk(dir)
}

// Versions lists the migration versions found in the source, ascending.
func (s Source) Versions() ([]int64, error) {
	files, err := migrationFiles(s.fsys, s.dir)
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(files))
	for _, f := range files {
		versions = append(versions, f.version)
	}
	return versions, nil
}

func (s Source) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(s.fsys)
	defer goose.SetBaseFS(nil)
	return fn()
}

// Run executes a goose command (up, down, status, redo, reset) against db.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	return src.with(func() error {
		if err := goose.RunContext(ctx, command, db, src.dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, src Source, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	return src.with(func() error {
		current, err := goose.GetDBVersion(db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == target:
			return nil
		case current < target:
			if err := goose.UpToContext(ctx, db, src.dir, target); err != nil {
				return fmt.Errorf("goose up-to %d: %w", target, err)
			}
		default:
			if err := goose.DownToContext(ctx, db, src.dir, target); err != nil {
				return fmt.Errorf("goose down-to %d: %w", target, err)
			}
		}
		return nil
	})
}

// Pending returns the source versions newer than the database version.
func Pending(db *sql.DB, src Source) ([]int64, error) {
	versions, err := src.Versions()
	if err != nil {
		return nil, err
	}
	var current int64
	err = src.with(func() error {
		v, err := goose.GetDBVersion(db)
		current = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	return pendingAfter(versions, current), nil
}

func pendingAfter(versions []int64, current int64) []int64 {
	idx := sort.Search(len(versions), func(i int) bool { return versions[i] > current })
	return append([]int64(nil), versions[idx:]...)
}
