package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kilianp07/chargesim/core/model"
	"github.com/kilianp07/chargesim/core/simulation"
)

// SQLiteStore persists simulations in a SQLite database. Inputs and outputs
// are stored as JSON documents.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS simulations (
        id TEXT PRIMARY KEY,
        created_at INTEGER NOT NULL,
        inputs TEXT NOT NULL,
        outputs TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS simulations_created_at ON simulations(created_at);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, sim model.Simulation) error {
	in, out, err := encode(sim.Inputs, sim.Outputs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO simulations (id, created_at, inputs, outputs) VALUES (?, ?, ?, ?)`,
		sim.ID, sim.CreatedAt.UnixNano(), in, out)
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("%w: %s", simulation.ErrAlreadyExists, sim.ID)
	}
	return err
}

func isPrimaryKeyViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Simulation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, inputs, outputs FROM simulations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.Simulation{}
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sim)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Simulation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, inputs, outputs FROM simulations WHERE id = ?`, id)
	sim, err := scanSimulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Simulation{}, simulation.ErrNotFound
	}
	return sim, err
}

func (s *SQLiteStore) Update(ctx context.Context, id string, in model.SimulationInputs, out model.SimulationOutputs) (model.Simulation, error) {
	inJSON, outJSON, err := encode(in, out)
	if err != nil {
		return model.Simulation{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE simulations SET inputs = ?, outputs = ? WHERE id = ?`, inJSON, outJSON, id)
	if err != nil {
		return model.Simulation{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Simulation{}, err
	}
	if n == 0 {
		return model.Simulation{}, simulation.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return simulation.ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanSimulation(r scanner) (model.Simulation, error) {
	var (
		sim     model.Simulation
		created int64
		in, out string
	)
	if err := r.Scan(&sim.ID, &created, &in, &out); err != nil {
		return model.Simulation{}, err
	}
	sim.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(in), &sim.Inputs); err != nil {
		return model.Simulation{}, fmt.Errorf("unmarshal inputs of %s: %w", sim.ID, err)
	}
	if err := json.Unmarshal([]byte(out), &sim.Outputs); err != nil {
		return model.Simulation{}, fmt.Errorf("unmarshal outputs of %s: %w", sim.ID, err)
	}
	return sim, nil
}

func encode(in model.SimulationInputs, out model.SimulationOutputs) (string, string, error) {
	inJSON, err := json.Marshal(in)
	if err != nil {
		return "", "", err
	}
	outJSON, err := json.Marshal(out)
	if err != nil {
		return "", "", err
	}
	return string(inJSON), string(outJSON), nil
}
