package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"bipv_simulator/internal/model"
	"bipv_simulator/internal/results"
)

const schema = `
CREATE TABLE IF NOT EXISTS bipv_results (
	scenario    TEXT NOT NULL,
	building_id TEXT NOT NULL,
	run_id      UUID NOT NULL,
	start_year  INTEGER NOT NULL,
	end_year    INTEGER NOT NULL,
	tree        JSONB NOT NULL,
	indicators  JSONB NOT NULL,
	state       JSONB,
	saved_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scenario, building_id)
)`

// Postgres stores results in the bipv_results table.
type Postgres struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenPostgres connects with a lib/pq connection string and creates the
// table when missing.
func OpenPostgres(ctx context.Context, connString string, logger *log.Logger) (*Postgres, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	p := NewPostgres(db, logger)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgres(db *sql.DB, logger *log.Logger) *Postgres {
	if logger == nil {
		logger = log.Default()
	}
	return &Postgres{db: db, logger: logger}
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate creates the results table.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create bipv_results: %w", err)
	}
	return nil
}

// Save upserts entries in one transaction.
func (p *Postgres) Save(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bipv_results (
			scenario,
			building_id,
			run_id,
			start_year,
			end_year,
			tree,
			indicators,
			state,
			saved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (scenario, building_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			start_year = EXCLUDED.start_year,
			end_year = EXCLUDED.end_year,
			tree = EXCLUDED.tree,
			indicators = EXCLUDED.indicators,
			state = EXCLUDED.state,
			saved_at = EXCLUDED.saved_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		tree, err := json.Marshal(e.Result.Tree)
		if err != nil {
			return fmt.Errorf("encoding result of %s: %w", e.BuildingID, err)
		}
		ind, err := json.Marshal(e.Indicators)
		if err != nil {
			return fmt.Errorf("encoding indicators of %s: %w", e.BuildingID, err)
		}
		var state []byte
		if e.State != nil {
			if state, err = json.Marshal(e.State); err != nil {
				return fmt.Errorf("encoding state of %s: %w", e.BuildingID, err)
			}
		}

		years := e.Result.Years()
		if _, err := stmt.ExecContext(ctx,
			e.Scenario,
			e.BuildingID,
			e.RunID.String(),
			years.Start,
			years.End,
			string(tree),
			string(ind),
			nullableJSON(state),
		); err != nil {
			return fmt.Errorf("failed to save result of %s: %w", e.BuildingID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.logger.Printf("Saved %d building results to database", len(entries))
	return nil
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

// Load returns the stored entry of a building.
func (p *Postgres) Load(ctx context.Context, scenario, building string) (Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT run_id, start_year, tree, indicators, state, saved_at
		FROM bipv_results
		WHERE scenario = $1 AND building_id = $2`, scenario, building)

	e := Entry{Scenario: scenario, BuildingID: building}
	var (
		runID            string
		tree, ind, state []byte
	)
	err := row.Scan(&runID, &e.Result.StartYear, &tree, &ind, &state, &e.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("result of %s/%s: %w", scenario, building, model.ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to load result: %w", err)
	}

	if e.RunID, err = uuid.Parse(runID); err != nil {
		return Entry{}, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	e.Result.Tree = &results.Tree{}
	if err := json.Unmarshal(tree, e.Result.Tree); err != nil {
		return Entry{}, fmt.Errorf("decoding result tree: %w", err)
	}
	if err := json.Unmarshal(ind, &e.Indicators); err != nil {
		return Entry{}, fmt.Errorf("decoding indicators: %w", err)
	}
	if state != nil {
		if err := json.Unmarshal(state, &e.State); err != nil {
			return Entry{}, fmt.Errorf("decoding state: %w", err)
		}
	}
	return e, nil
}

// Buildings returns the building ids stored for a scenario.
func (p *Postgres) Buildings(ctx context.Context, scenario string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT building_id FROM bipv_results
		WHERE scenario = $1
		ORDER BY building_id`, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to query buildings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan building id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
