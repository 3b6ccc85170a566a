// Package runlog records training runs and their per-step loss in SQLite.
package runlog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Hrithik-12/Microgpt/pkg/model"
)

// ErrNoRuns is returned by Latest on an empty log.
var ErrNoRuns = errors.New("no training runs recorded")

type Store struct {
	db *sql.DB
}

type Run struct {
	ID        int64
	StartedAt time.Time
	Config    model.Config
	Adam      model.AdamConfig
	NumParams int
	FinalLoss sql.NullFloat64
}

// Open creates the database file and its tables if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at INTEGER NOT NULL,
			config_json TEXT NOT NULL,
			adam_json TEXT NOT NULL,
			num_params INTEGER NOT NULL,
			final_loss REAL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS steps(
			run_id INTEGER NOT NULL REFERENCES runs(id),
			step INTEGER NOT NULL,
			loss REAL NOT NULL,
			lr REAL NOT NULL,
			PRIMARY KEY(run_id, step)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create steps: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StartRun(cfg model.Config, adam model.AdamConfig, numParams int) (int64, error) {
	cj, err := json.Marshal(cfg)
	if err != nil {
		return 0, err
	}
	aj, err := json.Marshal(adam)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec("INSERT INTO runs(started_at, config_json, adam_json, num_params) VALUES(?,?,?,?)",
		time.Now().Unix(), string(cj), string(aj), numParams)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) LogStep(runID int64, res model.StepResult) error {
	_, err := s.db.Exec("INSERT INTO steps(run_id, step, loss, lr) VALUES(?,?,?,?)",
		runID, res.Step, res.Loss, res.LR)
	return err
}

func (s *Store) FinishRun(runID int64, finalLoss float64) error {
	_, err := s.db.Exec("UPDATE runs SET final_loss = ? WHERE id = ?", finalLoss, runID)
	return err
}

// Latest returns the most recently started run.
func (s *Store) Latest() (Run, error) {
	row := s.db.QueryRow("SELECT id, started_at, config_json, adam_json, num_params, final_loss FROM runs ORDER BY id DESC LIMIT 1")
	var (
		r       Run
		started int64
		cj, aj  string
	)
	if err := row.Scan(&r.ID, &started, &cj, &aj, &r.NumParams, &r.FinalLoss); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNoRuns
		}
		return Run{}, err
	}
	r.StartedAt = time.Unix(started, 0)
	if err := json.Unmarshal([]byte(cj), &r.Config); err != nil {
		return Run{}, fmt.Errorf("run %d config: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(aj), &r.Adam); err != nil {
		return Run{}, fmt.Errorf("run %d adam: %w", r.ID, err)
	}
	return r, nil
}

// Losses returns the per-step losses of a run in step order.
func (s *Store) Losses(runID int64) ([]float64, error) {
	rows, err := s.db.Query("SELECT loss FROM steps WHERE run_id = ? ORDER BY step ASC", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var l float64
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
