// Package memory is the SQLite index over cycle history. The JSON files
// under .evonest/history/ stay the source of truth; the index mirrors
// them so progress and history reports can aggregate without reading
// every file. A missing or corrupt index is rebuilt from the files.
package memory

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/HendryAvila/evonest/internal/state"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Index is the cycle history index backed by SQLite.
type Index struct {
	db *sql.DB
}

// PersonaAggregate summarizes one persona's cycle outcomes.
type PersonaAggregate struct {
	Persona   string
	Uses      int
	Successes int
}

// Open opens (or creates) the index at dbPath and runs migrations.
func Open(dbPath string) (*Index, error) {
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	return idx, nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cycles (
			cycle            INTEGER PRIMARY KEY,
			timestamp        TEXT NOT NULL,
			persona          TEXT NOT NULL,
			adversarial      TEXT NOT NULL DEFAULT '',
			success          INTEGER NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			title            TEXT NOT NULL DEFAULT '',
			commit_message   TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_cycles_persona ON cycles(persona);
	`
	_, err := x.db.Exec(schema)
	return err
}

// Record upserts one cycle record. Re-recording a cycle overwrites the
// previous row so a rebuild from history files is idempotent.
func (x *Index) Record(rec *state.CycleRecord) error {
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := x.db.Exec(`
		INSERT INTO cycles (cycle, timestamp, persona, adversarial, success, duration_seconds, title, commit_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cycle) DO UPDATE SET
			timestamp = excluded.timestamp,
			persona = excluded.persona,
			adversarial = excluded.adversarial,
			success = excluded.success,
			duration_seconds = excluded.duration_seconds,
			title = excluded.title,
			commit_message = excluded.commit_message`,
		rec.Cycle, rec.Timestamp, rec.Mutation.Persona, rec.Mutation.Adversarial,
		success, rec.DurationSeconds, rec.ImprovementTitle, rec.CommitMessage)
	if err != nil {
		return fmt.Errorf("memory: recording cycle %d: %w", rec.Cycle, err)
	}
	return nil
}

// Totals returns the overall cycle and success counts.
func (x *Index) Totals() (cycles, successes int, err error) {
	row := x.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(success), 0) FROM cycles`)
	if err := row.Scan(&cycles, &successes); err != nil {
		return 0, 0, fmt.Errorf("memory: totals: %w", err)
	}
	return cycles, successes, nil
}

// PersonaAggregates returns per-persona outcome counts, most used first.
func (x *Index) PersonaAggregates() ([]PersonaAggregate, error) {
	rows, err := x.db.Query(`
		SELECT persona, COUNT(*), COALESCE(SUM(success), 0)
		FROM cycles GROUP BY persona ORDER BY COUNT(*) DESC, persona`)
	if err != nil {
		return nil, fmt.Errorf("memory: persona aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []PersonaAggregate
	for rows.Next() {
		var a PersonaAggregate
		if err := rows.Scan(&a.Persona, &a.Uses, &a.Successes); err != nil {
			return nil, fmt.Errorf("memory: scanning aggregate: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// Rebuild repopulates the index from the history files.
func (x *Index) Rebuild(st *state.ProjectState) error {
	paths, err := st.ListHistoryFiles()
	if err != nil {
		return fmt.Errorf("memory: listing history: %w", err)
	}
	for _, p := range paths {
		rec, err := st.ReadCycleRecord(p)
		if err != nil {
			continue
		}
		if err := x.Record(rec); err != nil {
			return err
		}
	}
	return nil
}
