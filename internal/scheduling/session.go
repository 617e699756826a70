package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MasterData is the read-only input of a session.
type MasterData struct {
	Structure   models.PeriodStructure
	Loads       []models.TeacherLoad
	Constraints []models.TeacherConstraint
	Facilities  []models.Facility
	Holidays    []models.Holiday
	ExamPeriods []models.ExamPeriod
}

// SessionOptions tunes a session. Zero values pick defaults.
type SessionOptions struct {
	HistoryLimit int
	NewID        func() string
	Now          func() time.Time
}

// Session owns the mutable state of the timetable: one entry store per opened week and
// the shared undo/redo history. It is not safe for concurrent use.
type Session struct {
	structure   models.PeriodStructure
	roster      *Roster
	constraints *ConstraintStore
	facilities  *FacilityRegistry
	calendar    *Calendar
	validator   *Validator
	weeks       map[string]*EntryStore
	history     *History
	newID       func() string
	now         func() time.Time
}

// NewSession validates the structure and builds a session.
func NewSession(data MasterData, opts SessionOptions) (*Session, error) {
	structure, err := NormalizeStructure(data.Structure)
	if err != nil {
		return nil, err
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	s := &Session{
		structure:   structure,
		roster:      NewRoster(data.Loads),
		constraints: NewConstraintStore(data.Constraints),
		facilities:  NewFacilityRegistry(data.Facilities),
		calendar:    NewCalendar(data.Holidays, data.ExamPeriods),
		weeks:       make(map[string]*EntryStore),
		history:     NewHistory(opts.HistoryLimit),
		newID:       opts.NewID,
		now:         opts.Now,
	}
	s.rebuildValidator()
	return s, nil
}

func (s *Session) rebuildValidator() {
	s.validator = NewValidator(s.structure, s.roster, s.constraints, s.facilities, s.calendar, s.newID)
}

// Structure returns the current period structure.
func (s *Session) Structure() models.PeriodStructure {
	return s.structure
}

// SetStructure replaces the period structure. It refuses changes that would strand
// entries of any opened week.
func (s *Session) SetStructure(next models.PeriodStructure) (models.PeriodStructure, error) {
	normalized, err := NormalizeStructure(next)
	if err != nil {
		return models.PeriodStructure{}, err
	}
	var orphans []models.TimetableEntry
	for _, week := range s.OpenWeeks() {
		orphans = append(orphans, OrphanedEntries(normalized, s.weeks[week].Entries())...)
	}
	if len(orphans) > 0 {
		return models.PeriodStructure{}, &OrphanedEntriesError{Entries: orphans}
	}
	s.structure = normalized
	s.rebuildValidator()
	return normalized, nil
}

// SetRoster swaps the teacher roster.
func (s *Session) SetRoster(loads []models.TeacherLoad) {
	s.roster = NewRoster(loads)
	s.rebuildValidator()
}

// SetFacilities swaps the facility catalog.
func (s *Session) SetFacilities(facilities []models.Facility) {
	s.facilities = NewFacilityRegistry(facilities)
	s.rebuildValidator()
}

// SetCalendar swaps the holiday and exam calendar.
func (s *Session) SetCalendar(holidays []models.Holiday, exams []models.ExamPeriod) {
	s.calendar = NewCalendar(holidays, exams)
	s.rebuildValidator()
}

// Roster returns the teacher loads in roster order.
func (s *Session) Roster() []models.TeacherLoad {
	return s.roster.Loads()
}

// Constraint returns the effective constraint of a teacher and whether it is an override.
func (s *Session) Constraint(teacherID string) (models.TeacherConstraint, bool) {
	return s.constraints.Effective(teacherID), s.constraints.Has(teacherID)
}

// SetConstraint stores a validated override.
func (s *Session) SetConstraint(c models.TeacherConstraint) (models.TeacherConstraint, error) {
	return s.constraints.Set(c, s.structure.PeriodsPerDay)
}

// ResetConstraint reverts a teacher to the default constraint.
func (s *Session) ResetConstraint(teacherID string) bool {
	return s.constraints.Reset(teacherID)
}

// OpenWeek loads the committed entries of a week, replacing any previous contents.
// It returns the canonical week key.
func (s *Session) OpenWeek(week string, entries []models.TimetableEntry) (string, error) {
	start, err := ParseWeek(week)
	if err != nil {
		return "", err
	}
	key := start.Format(DateLayout)
	s.weeks[key] = NewEntryStore(key, entries...)
	return key, nil
}

// IsOpen reports whether a week has been loaded.
func (s *Session) IsOpen(week string) bool {
	key, err := weekKey(week)
	if err != nil {
		return false
	}
	_, ok := s.weeks[key]
	return ok
}

// OpenWeeks lists loaded weeks in date order.
func (s *Session) OpenWeeks() []string {
	out := make([]string, 0, len(s.weeks))
	for k := range s.weeks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Entries returns the entries of a week, narrowed by filter.
func (s *Session) Entries(week string, filter SlotFilter) ([]models.TimetableEntry, error) {
	store, err := s.store(week)
	if err != nil {
		return nil, err
	}
	all := store.Entries()
	if filter.TeacherID == "" && filter.BatchID == "" {
		return all, nil
	}
	out := make([]models.TimetableEntry, 0, len(all))
	for _, e := range all {
		if filter.TeacherID != "" && e.TeacherID != filter.TeacherID {
			continue
		}
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Entry returns one entry of a week.
func (s *Session) Entry(week, id string) (models.TimetableEntry, error) {
	store, err := s.store(week)
	if err != nil {
		return models.TimetableEntry{}, err
	}
	e, ok := store.Find(id)
	if !ok {
		return models.TimetableEntry{}, ErrEntryNotFound
	}
	return e, nil
}

// EligibleBatches lists batches for teacher-first placement.
func (s *Session) EligibleBatches(week, teacherID, day string, period int) ([]Option, error) {
	store, err := s.store(week)
	if err != nil {
		return nil, err
	}
	return s.validator.EligibleBatches(store, teacherID, day, period), nil
}

// EligibleTeachers lists teachers for batch-first placement.
func (s *Session) EligibleTeachers(week, batchID, day string, period int) ([]Option, error) {
	store, err := s.store(week)
	if err != nil {
		return nil, err
	}
	return s.validator.EligibleTeachers(store, batchID, day, period), nil
}

// Validate screens a candidate without committing it.
func (s *Session) Validate(week string, c Candidate) (Placement, error) {
	store, err := s.store(week)
	if err != nil {
		return Placement{}, err
	}
	return s.validator.Validate(store, c)
}

// Assign validates and commits a new placement.
func (s *Session) Assign(week string, c Candidate) (Placement, Action, error) {
	store, err := s.store(week)
	if err != nil {
		return Placement{}, Action{}, err
	}
	placement, err := s.validator.Validate(store, c)
	if err != nil {
		return Placement{}, Action{}, err
	}
	e := placement.Entry
	action, err := s.commit(ActionAssign,
		fmt.Sprintf("Assign %s to %s on %s period %d", displayName(e.TeacherName, e.TeacherID), displayName(e.BatchName, e.BatchID), e.Day, e.PeriodNumber),
		Change{Week: store.WeekStart(), Added: []models.TimetableEntry{e}})
	if err != nil {
		return Placement{}, Action{}, err
	}
	return placement, action, nil
}

// Remove deletes an entry.
func (s *Session) Remove(week, id string) (Action, error) {
	store, err := s.store(week)
	if err != nil {
		return Action{}, err
	}
	existing, ok := store.Find(id)
	if !ok {
		return Action{}, ErrEntryNotFound
	}
	return s.commit(ActionRemove,
		fmt.Sprintf("Remove %s from %s on %s period %d", displayName(existing.SubjectName, existing.SubjectID), displayName(existing.BatchName, existing.BatchID), existing.Day, existing.PeriodNumber),
		Change{Week: store.WeekStart(), Removed: []models.TimetableEntry{existing}})
}

// Replace swaps an entry for a new validated placement as one action.
func (s *Session) Replace(week, id string, c Candidate) (Placement, Action, error) {
	return s.replace(week, id, c, ActionReplace)
}

// Move relocates an entry to another slot. Drag and drop is one remove+add action. A
// substitution travels with the entry and is checked again at the new slot.
func (s *Session) Move(week, id, day string, period int) (Placement, Action, error) {
	existing, err := s.Entry(week, id)
	if err != nil {
		return Placement{}, Action{}, err
	}
	c := Candidate{
		Mode:         ModeTeacherFirst,
		Day:          day,
		PeriodNumber: period,
		TeacherID:    existing.TeacherID,
		BatchID:      existing.BatchID,
	}
	if existing.FacilityID != nil {
		c.FacilityID = *existing.FacilityID
	}
	return s.replace(week, id, c, ActionMove)
}

func (s *Session) replace(week, id string, c Candidate, kind ActionKind) (Placement, Action, error) {
	store, err := s.store(week)
	if err != nil {
		return Placement{}, Action{}, err
	}
	existing, ok := store.Find(id)
	if !ok {
		return Placement{}, Action{}, ErrEntryNotFound
	}
	remaining := store.Without(id)
	placement, err := s.validator.Validate(remaining, c)
	if err != nil {
		return Placement{}, Action{}, err
	}
	e := placement.Entry
	if kind == ActionMove && existing.IsSubstituted && existing.SubstituteTeacherID != nil {
		var name string
		if existing.SubstituteTeacherName != nil {
			name = *existing.SubstituteTeacherName
		}
		name, err = s.checkSubstitute(remaining, e, *existing.SubstituteTeacherID, name)
		if err != nil {
			return Placement{}, Action{}, err
		}
		subID := *existing.SubstituteTeacherID
		e.IsSubstituted = true
		e.SubstituteTeacherID = &subID
		e.SubstituteTeacherName = &name
		placement.Entry = e
	}
	var description string
	if kind == ActionMove {
		description = fmt.Sprintf("Move %s for %s from %s period %d to %s period %d", displayName(e.SubjectName, e.SubjectID), displayName(e.BatchName, e.BatchID), existing.Day, existing.PeriodNumber, e.Day, e.PeriodNumber)
	} else {
		description = fmt.Sprintf("Replace %s with %s for %s on %s period %d", displayName(existing.SubjectName, existing.SubjectID), displayName(e.SubjectName, e.SubjectID), displayName(e.BatchName, e.BatchID), e.Day, e.PeriodNumber)
	}
	action, err := s.commit(kind, description, Change{
		Week:    store.WeekStart(),
		Removed: []models.TimetableEntry{existing},
		Added:   []models.TimetableEntry{e},
	})
	if err != nil {
		return Placement{}, Action{}, err
	}
	return placement, action, nil
}

// Substitute attaches a substitute teacher without changing the regular teacher, so the
// regular teacher's load accounting is preserved.
func (s *Session) Substitute(week, id, substituteID, substituteName string) (Action, error) {
	store, err := s.store(week)
	if err != nil {
		return Action{}, err
	}
	existing, ok := store.Find(id)
	if !ok {
		return Action{}, ErrEntryNotFound
	}
	substituteName, err = s.checkSubstitute(store, existing, substituteID, substituteName)
	if err != nil {
		return Action{}, err
	}

	next := existing.Clone()
	next.IsSubstituted = true
	subID, subName := substituteID, substituteName
	next.SubstituteTeacherID = &subID
	next.SubstituteTeacherName = &subName
	return s.commit(ActionSubstitute,
		fmt.Sprintf("Substitute %s for %s on %s period %d", displayName(substituteName, substituteID), displayName(existing.TeacherName, existing.TeacherID), existing.Day, existing.PeriodNumber),
		Change{Week: store.WeekStart(), Removed: []models.TimetableEntry{existing}, Added: []models.TimetableEntry{next}})
}

// checkSubstitute verifies that substituteID can cover target at its slot and returns
// the resolved display name.
func (s *Session) checkSubstitute(store *EntryStore, target models.TimetableEntry, substituteID, substituteName string) (string, error) {
	if substituteID == "" {
		return "", reject(ReasonInvalidSubstitute, "substitute teacher is required")
	}
	if substituteID == target.TeacherID {
		return "", reject(ReasonInvalidSubstitute, "substitute must differ from the regular teacher")
	}
	if load, ok := s.roster.Teacher(substituteID); ok {
		if !WorksOn(load, target.Day) {
			return "", reject(ReasonInvalidSubstitute, "%s does not work on %s", displayName(load.TeacherName, load.TeacherID), target.Day)
		}
		if substituteName == "" {
			substituteName = load.TeacherName
		}
	}
	for _, other := range store.AtSlot(target.Day, target.PeriodNumber) {
		if other.ID == target.ID {
			continue
		}
		if other.TeacherID == substituteID || (other.SubstituteTeacherID != nil && *other.SubstituteTeacherID == substituteID) {
			r := reject(ReasonInvalidSubstitute, "%s already teaches on %s period %d", displayName(substituteName, substituteID), target.Day, target.PeriodNumber)
			r.Conflicting = []models.TimetableEntry{other}
			return "", r
		}
	}
	return substituteName, nil
}

// ClearSubstitution returns an entry to its regular teacher.
func (s *Session) ClearSubstitution(week, id string) (Action, error) {
	store, err := s.store(week)
	if err != nil {
		return Action{}, err
	}
	existing, ok := store.Find(id)
	if !ok {
		return Action{}, ErrEntryNotFound
	}
	if !existing.IsSubstituted {
		return Action{}, reject(ReasonInvalidSubstitute, "entry has no substitute")
	}
	next := existing.Clone()
	next.IsSubstituted = false
	next.SubstituteTeacherID = nil
	next.SubstituteTeacherName = nil
	return s.commit(ActionClearSubstitution,
		fmt.Sprintf("Clear substitute on %s period %d", existing.Day, existing.PeriodNumber),
		Change{Week: store.WeekStart(), Removed: []models.TimetableEntry{existing}, Added: []models.TimetableEntry{next}})
}

// Import bulk-adds entries without clash screening so existing data stays
// representable. Entries must still fit the period structure. Every imported entry gets
// a fresh id; ids carried by the payload are ignored.
func (s *Session) Import(week string, entries []models.TimetableEntry, description string) (Action, error) {
	store, err := s.store(week)
	if err != nil {
		return Action{}, err
	}
	added := make([]models.TimetableEntry, 0, len(entries))
	for _, raw := range entries {
		e := raw.Clone()
		day, rej := s.validator.checkSlot(e.Day, e.PeriodNumber)
		if rej != nil {
			return Action{}, rej
		}
		e.Day = day
		e.ID = s.newID()
		e.WeekStart = store.WeekStart()
		added = append(added, e)
	}
	if description == "" {
		description = fmt.Sprintf("Import %d entries into week of %s", len(added), store.WeekStart())
	}
	return s.commit(ActionImport, description, Change{Week: store.WeekStart(), Added: added})
}

// CopyWeek replicates the source week into each target week as one action. Target
// weeks that are not opened yet start empty.
func (s *Session) CopyWeek(sourceWeek string, targetWeeks []string, opts CopyOptions) (CopyResult, Action, error) {
	source, err := s.store(sourceWeek)
	if err != nil {
		return CopyResult{}, Action{}, err
	}
	targets := make([]*EntryStore, 0, len(targetWeeks))
	seen := make(map[string]bool, len(targetWeeks))
	for _, raw := range targetWeeks {
		key, err := weekKey(raw)
		if err != nil {
			return CopyResult{}, Action{}, configErr("targetWeeks", "%v", err)
		}
		if key == source.WeekStart() {
			return CopyResult{}, Action{}, configErr("targetWeeks", "cannot copy week %s onto itself", key)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := s.weeks[key]; !ok {
			s.weeks[key] = NewEntryStore(key)
		}
		targets = append(targets, s.weeks[key])
	}
	if len(targets) == 0 {
		return CopyResult{}, Action{}, configErr("targetWeeks", "at least one target week is required")
	}

	result := CopyWeek(s.validator, source.Entries(), targets, opts)
	changes := make([]Change, 0, len(result.Weeks))
	for _, w := range result.Weeks {
		if len(w.Staged) == 0 && len(w.Replaced) == 0 {
			continue
		}
		changes = append(changes, Change{Week: w.WeekStart, Removed: w.Replaced, Added: w.Staged})
	}
	if len(changes) == 0 {
		return result, Action{Kind: ActionCopyWeek}, nil
	}
	action, err := s.commit(ActionCopyWeek,
		fmt.Sprintf("Copy week of %s to %d week(s): %d entries, %d skipped", source.WeekStart(), len(targets), result.StagedCount(), len(result.Skipped)),
		changes...)
	if err != nil {
		return CopyResult{}, Action{}, err
	}
	return result, action, nil
}

// Undo reverts the most recent action. ok is false when there was nothing to undo.
func (s *Session) Undo() (Action, bool, error) {
	a, ok, err := s.history.Undo(s)
	if err != nil || !ok {
		return Action{}, ok, err
	}
	return Action{
		ID:          a.ID,
		Kind:        ActionUndo,
		Description: "Undo: " + a.Description,
		Changes:     a.Inverse(),
		CommittedAt: s.now(),
	}, true, nil
}

// Redo reapplies the most recently undone action.
func (s *Session) Redo() (Action, bool, error) {
	a, ok, err := s.history.Redo(s)
	if err != nil || !ok {
		return Action{}, ok, err
	}
	return Action{
		ID:          a.ID,
		Kind:        ActionRedo,
		Description: "Redo: " + a.Description,
		Changes:     a.Changes,
		CommittedAt: s.now(),
	}, true, nil
}

// Rollback reverts a just-committed action that its caller failed to persist. Only the
// most recent action can be rolled back; it does not become redoable.
func (s *Session) Rollback(actionID string) (bool, error) {
	return s.history.Discard(s, actionID)
}

// HistoryState reports the undo/redo stacks.
func (s *Session) HistoryState() HistoryState {
	return s.history.State()
}

// Conflicts runs the detector over a week.
func (s *Session) Conflicts(week string) ([]models.Conflict, error) {
	store, err := s.store(week)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(store.Entries(), s.roster.Loads()), nil
}

// LoadSummaries reports computed teacher loads for a week.
func (s *Session) LoadSummaries(week string) ([]models.TeacherLoadSummary, error) {
	store, err := s.store(week)
	if err != nil {
		return nil, err
	}
	return LoadSummaries(s.roster.Loads(), store.Entries()), nil
}

// Apply implements Applier. A change whose added entry shares an id with a removed one
// is applied in place so the entry keeps its position. The whole change set is checked
// before any store is touched, so a failing Apply leaves the session unchanged.
func (s *Session) Apply(changes []Change) error {
	if err := s.checkChanges(changes); err != nil {
		return err
	}
	for _, c := range changes {
		store, ok := s.weeks[c.Week]
		if !ok {
			store = NewEntryStore(c.Week)
			s.weeks[c.Week] = store
		}
		inPlace := make(map[string]models.TimetableEntry, len(c.Added))
		removed := make(map[string]bool, len(c.Removed))
		for _, e := range c.Removed {
			removed[e.ID] = true
		}
		for _, e := range c.Added {
			if removed[e.ID] {
				inPlace[e.ID] = e
			}
		}
		for _, e := range c.Removed {
			if next, ok := inPlace[e.ID]; ok {
				if _, found := store.Replace(e.ID, next); !found {
					return fmt.Errorf("apply change to week %s: %w", c.Week, ErrEntryNotFound)
				}
				continue
			}
			if _, found := store.Remove(e.ID); !found {
				return fmt.Errorf("apply change to week %s: %w", c.Week, ErrEntryNotFound)
			}
		}
		for _, e := range c.Added {
			if _, ok := inPlace[e.ID]; ok {
				continue
			}
			store.Add(e)
		}
	}
	return nil
}

// checkChanges replays the id bookkeeping of a change set without mutating anything.
// Every removed id must be present exactly once and no added id may already exist.
func (s *Session) checkChanges(changes []Change) error {
	present := make(map[string]map[string]bool)
	ids := func(week string) map[string]bool {
		if set, ok := present[week]; ok {
			return set
		}
		set := make(map[string]bool)
		if store, ok := s.weeks[week]; ok {
			for id := range store.index {
				set[id] = true
			}
		}
		present[week] = set
		return set
	}
	for _, c := range changes {
		set := ids(c.Week)
		for _, e := range c.Removed {
			if !set[e.ID] {
				return fmt.Errorf("apply change to week %s: %w: %s", c.Week, ErrEntryNotFound, e.ID)
			}
			delete(set, e.ID)
		}
		for _, e := range c.Added {
			if e.ID == "" {
				return fmt.Errorf("apply change to week %s: %w", c.Week, ErrEntryIDRequired)
			}
			if set[e.ID] {
				return fmt.Errorf("apply change to week %s: %w: %s", c.Week, ErrDuplicateEntryID, e.ID)
			}
			set[e.ID] = true
		}
	}
	return nil
}

func (s *Session) commit(kind ActionKind, description string, changes ...Change) (Action, error) {
	action := Action{
		ID:          s.newID(),
		Kind:        kind,
		Description: description,
		Changes:     changes,
		CommittedAt: s.now(),
	}
	if err := s.Apply(changes); err != nil {
		return Action{}, err
	}
	s.history.Push(action)
	return action, nil
}

func (s *Session) store(week string) (*EntryStore, error) {
	key, err := weekKey(week)
	if err != nil {
		return nil, err
	}
	store, ok := s.weeks[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWeek, key)
	}
	return store, nil
}

func weekKey(week string) (string, error) {
	start, err := ParseWeek(week)
	if err != nil {
		return "", err
	}
	return start.Format(DateLayout), nil
}
