package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// FacilityRepository reads the facility catalog.
type FacilityRepository struct {
	db *sqlx.DB
}

// NewFacilityRepository constructs the repository.
func NewFacilityRepository(db *sqlx.DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// List returns all facilities ordered by name.
func (r *FacilityRepository) List(ctx context.Context) ([]models.Facility, error) {
	const query = `SELECT id, name, type, capacity, duration, allowed_classes FROM facilities ORDER BY name ASC, id ASC`
	var facilities []models.Facility
	if err := r.db.SelectContext(ctx, &facilities, query); err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	return facilities, nil
}
