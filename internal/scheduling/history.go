package scheduling

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// DefaultHistoryLimit bounds each history stack.
const DefaultHistoryLimit = 50

// ActionKind names the user gesture behind an action.
type ActionKind string

const (
	ActionAssign            ActionKind = "assign"
	ActionRemove            ActionKind = "remove"
	ActionReplace           ActionKind = "replace"
	ActionMove              ActionKind = "move"
	ActionSubstitute        ActionKind = "substitute"
	ActionClearSubstitution ActionKind = "clear_substitution"
	ActionImport            ActionKind = "import"
	ActionCopyWeek          ActionKind = "copy_week"
	ActionUndo              ActionKind = "undo"
	ActionRedo              ActionKind = "redo"
)

// Change is the before/after entry set of one week within an action.
type Change struct {
	Week    string                  `json:"week"`
	Removed []models.TimetableEntry `json:"removed"`
	Added   []models.TimetableEntry `json:"added"`
}

// Action is a reversible record of one committed mutation, possibly bulk.
type Action struct {
	ID          string     `json:"id"`
	Kind        ActionKind `json:"kind"`
	Description string     `json:"description"`
	Changes     []Change   `json:"changes"`
	CommittedAt time.Time  `json:"committedAt"`
}

// Empty reports whether the action changes nothing.
func (a Action) Empty() bool {
	for _, c := range a.Changes {
		if len(c.Removed) > 0 || len(c.Added) > 0 {
			return false
		}
	}
	return true
}

// Weeks lists the distinct weeks touched by the action.
func (a Action) Weeks() []string {
	out := make([]string, 0, len(a.Changes))
	seen := make(map[string]bool, len(a.Changes))
	for _, c := range a.Changes {
		if !seen[c.Week] {
			seen[c.Week] = true
			out = append(out, c.Week)
		}
	}
	return out
}

// Inverse returns the change set that restores the state before the action.
func (a Action) Inverse() []Change {
	out := make([]Change, 0, len(a.Changes))
	for i := len(a.Changes) - 1; i >= 0; i-- {
		c := a.Changes[i]
		out = append(out, Change{Week: c.Week, Removed: c.Added, Added: c.Removed})
	}
	return out
}

// Applier applies change sets to entry stores.
type Applier interface {
	Apply(changes []Change) error
}

// HistoryState summarises both stacks.
type HistoryState struct {
	CanUndo   bool   `json:"canUndo"`
	CanRedo   bool   `json:"canRedo"`
	UndoDepth int    `json:"undoDepth"`
	RedoDepth int    `json:"redoDepth"`
	NextUndo  string `json:"nextUndo,omitempty"`
	NextRedo  string `json:"nextRedo,omitempty"`
	Limit     int    `json:"limit"`
}

// History is a linear undo/redo model. Pushing a new action discards the redo stack;
// branching futures are not kept.
type History struct {
	limit int
	undo  []Action
	redo  []Action
}

// NewHistory creates a history bounded to limit actions per stack.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records a committed action and clears redo.
func (h *History) Push(a Action) {
	h.undo = bounded(append(h.undo, a), h.limit)
	h.redo = nil
}

// Undo reverts the latest action. It returns false on an empty stack.
func (h *History) Undo(applier Applier) (Action, bool, error) {
	if len(h.undo) == 0 {
		return Action{}, false, nil
	}
	a := h.undo[len(h.undo)-1]
	if err := applier.Apply(a.Inverse()); err != nil {
		return Action{}, false, err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = bounded(append(h.redo, a), h.limit)
	return a, true, nil
}

// Redo reapplies the most recently undone action. It returns false on an empty stack.
func (h *History) Redo(applier Applier) (Action, bool, error) {
	if len(h.redo) == 0 {
		return Action{}, false, nil
	}
	a := h.redo[len(h.redo)-1]
	if err := applier.Apply(a.Changes); err != nil {
		return Action{}, false, err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = bounded(append(h.undo, a), h.limit)
	return a, true, nil
}

// Discard reverts the latest action only when its id matches and drops it without
// making it redoable. It returns false when the top of the undo stack is another action.
func (h *History) Discard(applier Applier, id string) (bool, error) {
	if len(h.undo) == 0 || h.undo[len(h.undo)-1].ID != id {
		return false, nil
	}
	a := h.undo[len(h.undo)-1]
	if err := applier.Apply(a.Inverse()); err != nil {
		return false, err
	}
	h.undo = h.undo[:len(h.undo)-1]
	return true, nil
}

// CanUndo reports whether undo would do anything.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether redo would do anything.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

// State reports depth and the next descriptions of both stacks.
func (h *History) State() HistoryState {
	state := HistoryState{
		CanUndo:   h.CanUndo(),
		CanRedo:   h.CanRedo(),
		UndoDepth: len(h.undo),
		RedoDepth: len(h.redo),
		Limit:     h.limit,
	}
	if state.CanUndo {
		state.NextUndo = h.undo[len(h.undo)-1].Description
	}
	if state.CanRedo {
		state.NextRedo = h.redo[len(h.redo)-1].Description
	}
	return state
}

func bounded(stack []Action, limit int) []Action {
	if len(stack) <= limit {
		return stack
	}
	out := make([]Action, limit)
	copy(out, stack[len(stack)-limit:])
	return out
}
