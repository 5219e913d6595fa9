package state

import "io"

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// RunStore handles run-archive persistence operations. The engine writes
// finished runs through this interface so it never depends on the concrete
// SQLite implementation.
type RunStore interface {
	io.Closer
	Migrator
	SaveRun(rec *RunRecord) error
	GetRun(id string) (*RunRecord, error)
	ListRuns(limit int) ([]RunRecord, error)
	DeleteRun(id string) error
}

// Compile-time verification that DB implements the store interfaces.
var (
	_ RunStore = (*DB)(nil)
	_ Migrator = (*DB)(nil)
)
