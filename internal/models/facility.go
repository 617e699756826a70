package models

import "github.com/lib/pq"

// FacilityType enumerates supported facility kinds.
type FacilityType string

const (
	FacilityLab       FacilityType = "lab"
	FacilitySports    FacilityType = "sports"
	FacilitySpecial   FacilityType = "special"
	FacilityClassroom FacilityType = "classroom"
)

// Facility is a room or lab that placements may reference.
type Facility struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Type           FacilityType   `db:"type" json:"type"`
	Capacity       *int           `db:"capacity" json:"capacity,omitempty"`
	Duration       int            `db:"duration" json:"duration"`
	AllowedClasses pq.StringArray `db:"allowed_classes" json:"allowedClasses"`
}
