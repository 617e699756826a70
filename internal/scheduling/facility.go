package scheduling

import "github.com/noah-isme/sma-timetable-api/internal/models"

// FacilityRegistry is a read-mostly catalog of rooms and labs.
type FacilityRegistry struct {
	byID map[string]models.Facility
}

// NewFacilityRegistry indexes facilities by id. Later duplicates overwrite earlier ones.
func NewFacilityRegistry(facilities []models.Facility) *FacilityRegistry {
	r := &FacilityRegistry{byID: make(map[string]models.Facility, len(facilities))}
	for _, f := range facilities {
		if f.Duration <= 0 {
			f.Duration = 1
		}
		r.byID[f.ID] = f
	}
	return r
}

// Find returns the facility with the given id.
func (r *FacilityRegistry) Find(id string) (models.Facility, bool) {
	if r == nil {
		return models.Facility{}, false
	}
	f, ok := r.byID[id]
	return f, ok
}

// Allowed reports whether batchID may use the facility. An empty allow list is
// unrestricted.
func (r *FacilityRegistry) Allowed(f models.Facility, batchID string) bool {
	if len(f.AllowedClasses) == 0 {
		return true
	}
	for _, c := range f.AllowedClasses {
		if c == batchID {
			return true
		}
	}
	return false
}

// Len returns the number of registered facilities.
func (r *FacilityRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byID)
}
