// store.go - SQLite-Ablage fuer Runs und Step-Metriken
//
// Enthält: Store struct, NewStore, Close, Schema-Init, Run/Step-Queries
//
// SQLite verwaltet sein eigenes Locking fuer konkurrierende Zugriffe;
// der WAL-Modus erlaubt dem Status-Server zu lesen, waehrend die
// Trainingsschleife schreibt. Application-Level-Locks sind nicht noetig.
package train

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite-Treiber registrieren

	"github.com/alignforge/alignforge/api"
)

// Store umhuellt die SQLite-Verbindung der Run-Datenbank
type Store struct {
	conn *sql.DB
}

// NewStore oeffnet (oder erstellt) die Run-Datenbank
func NewStore(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping run store: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize run store: %w", err)
	}

	return s, nil
}

// Close schliesst die Datenbankverbindung
func (s *Store) Close() error {
	_, _ = s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return s.conn.Close()
}

// init initialisiert das Schema
func (s *Store) init() error {
	if _, err := s.conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		recipe TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'running',
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		epoch INTEGER NOT NULL DEFAULT 0,
		loss REAL NOT NULL,
		learning_rate REAL NOT NULL,
		samples_per_sec REAL NOT NULL DEFAULT 0,
		data_ms REAL NOT NULL DEFAULT 0,
		compute_ms REAL NOT NULL DEFAULT 0,
		reward_margin REAL NOT NULL DEFAULT 0,
		reward_accuracy REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_steps_run_id ON steps(run_id, step);
	`

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// CreateRun legt einen neuen Run an
func (s *Store) CreateRun(run api.RunInfo) error {
	_, err := s.conn.Exec(
		`INSERT INTO runs (id, stage, model, recipe, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Stage, run.Model, run.Recipe, run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun setzt Endstatus und Endzeit eines Runs
func (s *Store) FinishRun(id, status string) error {
	res, err := s.conn.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: no run with id %s", id)
	}
	return nil
}

// RecordStep speichert die Metriken eines Logging-Intervalls
func (s *Store) RecordStep(runID string, m api.StepMetrics) error {
	_, err := s.conn.Exec(
		`INSERT INTO steps (run_id, step, epoch, loss, learning_rate, samples_per_sec, data_ms, compute_ms, reward_margin, reward_accuracy)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.Step, m.Epoch, m.Loss, m.LearningRate, m.SamplesPerSec, m.DataMS, m.ComputeMS, m.RewardMargin, m.RewardAccuracy,
	)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// Run gibt einen einzelnen Run zurueck
func (s *Store) Run(id string) (*api.RunInfo, error) {
	row := s.conn.QueryRow(
		`SELECT id, stage, model, recipe, status, started_at, finished_at FROM runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// ListRuns gibt alle Runs zurueck, neueste zuerst
func (s *Store) ListRuns() ([]api.RunInfo, error) {
	rows, err := s.conn.Query(
		`SELECT id, stage, model, recipe, status, started_at, finished_at FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []api.RunInfo
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanner abstrahiert sql.Row und sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*api.RunInfo, error) {
	var run api.RunInfo
	var finished sql.NullTime
	if err := sc.Scan(&run.ID, &run.Stage, &run.Model, &run.Recipe, &run.Status, &run.StartedAt, &finished); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// Steps gibt die gespeicherten Metriken eines Runs zurueck
func (s *Store) Steps(runID string) ([]api.StepMetrics, error) {
	rows, err := s.conn.Query(
		`SELECT step, epoch, loss, learning_rate, samples_per_sec, data_ms, compute_ms, reward_margin, reward_accuracy
		 FROM steps WHERE run_id = ? ORDER BY step`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []api.StepMetrics
	for rows.Next() {
		var m api.StepMetrics
		if err := rows.Scan(&m.Step, &m.Epoch, &m.Loss, &m.LearningRate, &m.SamplesPerSec, &m.DataMS, &m.ComputeMS, &m.RewardMargin, &m.RewardAccuracy); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
