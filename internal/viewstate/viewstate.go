// Package viewstate holds the interactive selection state of the timeline
// as an immutable value. Every user event produces a new State through
// Reduce; nothing is mutated in place.
package viewstate

import (
	"fmt"
	"strings"
)

// State is the current selection, highlight and search position.
type State struct {
	// SelectedBlock is nil when no block is selected.
	SelectedBlock      *int   `json:"selected_block,omitempty"`
	HighlightedProgram string `json:"highlighted_program,omitempty"`
	Query              string `json:"query"`
	Cursor             int    `json:"cursor"`
}

// Event is a user interaction.
type Event interface {
	isEvent()
}

type SelectBlock struct{ ID int }

type ClearSelection struct{}

// HighlightProgram sets the highlighted base program; an empty Name clears it.
type HighlightProgram struct{ Name string }

type SetQuery struct{ Query string }

// MoveCursor moves the search cursor by Delta within Results entries.
type MoveCursor struct {
	Delta   int
	Results int
}

func (SelectBlock) isEvent()      {}
func (ClearSelection) isEvent()   {}
func (HighlightProgram) isEvent() {}
func (SetQuery) isEvent()         {}
func (MoveCursor) isEvent()       {}

// Reduce applies ev to s and returns the new state. Unknown events return s
// unchanged.
func Reduce(s State, ev Event) State {
	next := s
	if s.SelectedBlock != nil {
		id := *s.SelectedBlock
		next.SelectedBlock = &id
	}

	switch e := ev.(type) {
	case SelectBlock:
		id := e.ID
		next.SelectedBlock = &id
	case ClearSelection:
		next.SelectedBlock = nil
		next.HighlightedProgram = ""
	case HighlightProgram:
		next.HighlightedProgram = e.Name
	case SetQuery:
		next.Query = strings.TrimSpace(e.Query)
		next.Cursor = 0
	case MoveCursor:
		next.Cursor = clamp(s.Cursor+e.Delta, e.Results)
	}
	return next
}

// Selected reports the selected block id.
func (s State) Selected() (int, bool) {
	if s.SelectedBlock == nil {
		return 0, false
	}
	return *s.SelectedBlock, true
}

func clamp(cursor, results int) int {
	if results <= 0 || cursor < 0 {
		return 0
	}
	if cursor >= results {
		return results - 1
	}
	return cursor
}

// Wire event type names accepted by Decode.
const (
	TypeSelectBlock      = "select_block"
	TypeClearSelection   = "clear_selection"
	TypeHighlightProgram = "highlight_program"
	TypeSetQuery         = "set_query"
	TypeMoveCursor       = "move_cursor"
)

// WireEvent is the JSON form of an Event sent by the renderer.
type WireEvent struct {
	Type    string `json:"type"`
	ID      int    `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Query   string `json:"query,omitempty"`
	Delta   int    `json:"delta,omitempty"`
	Results int    `json:"results,omitempty"`
}

// Decode converts a WireEvent to an Event.
func Decode(w WireEvent) (Event, error) {
	switch w.Type {
	case TypeSelectBlock:
		return SelectBlock{ID: w.ID}, nil
	case TypeClearSelection:
		return ClearSelection{}, nil
	case TypeHighlightProgram:
		return HighlightProgram{Name: w.Name}, nil
	case TypeSetQuery:
		return SetQuery{Query: w.Query}, nil
	case TypeMoveCursor:
		return MoveCursor{Delta: w.Delta, Results: w.Results}, nil
	default:
		return nil, fmt.Errorf("viewstate: unknown event type %q", w.Type)
	}
}
