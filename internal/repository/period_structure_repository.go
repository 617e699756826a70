package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// DefaultStructureKey identifies the single institute-wide period structure row.
const DefaultStructureKey = "default"

type periodStructureRow struct {
	ID        string         `db:"id"`
	Document  types.JSONText `db:"document"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// PeriodStructureRepository stores the period structure as a JSON document.
type PeriodStructureRepository struct {
	db *sqlx.DB
}

// NewPeriodStructureRepository constructs the repository.
func NewPeriodStructureRepository(db *sqlx.DB) *PeriodStructureRepository {
	return &PeriodStructureRepository{db: db}
}

// Get loads the stored structure. sql.ErrNoRows is returned unwrapped when none is stored.
func (r *PeriodStructureRepository) Get(ctx context.Context) (*models.PeriodStructure, error) {
	var row periodStructureRow
	if err := r.db.GetContext(ctx, &row, `SELECT id, document, updated_at FROM period_structures WHERE id = $1`, DefaultStructureKey); err != nil {
		return nil, err
	}
	var structure models.PeriodStructure
	if err := json.Unmarshal(row.Document, &structure); err != nil {
		return nil, fmt.Errorf("decode period structure: %w", err)
	}
	return &structure, nil
}

// Save replaces the stored structure.
func (r *PeriodStructureRepository) Save(ctx context.Context, structure models.PeriodStructure) error {
	doc, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("encode period structure: %w", err)
	}
	row := periodStructureRow{ID: DefaultStructureKey, Document: types.JSONText(doc), UpdatedAt: time.Now().UTC()}
	const query = `INSERT INTO period_structures (id, document, updated_at)
VALUES (:id, :document, :updated_at)
ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save period structure: %w", err)
	}
	return nil
}
