package vcrefresh

import (
	json "github.com/goccy/go-json"
)

// BufferID addresses a buffer record inside a Tree.
type BufferID int32

// NoBuffer marks the absence of a buffer: no parent, no predecessor, or the
// end of a sibling list.
const NoBuffer BufferID = -1

// Fragment is a chunk of pre-encoded output bytes. A fragment is never
// mutated once it has been appended to a ContentLog.
type Fragment []byte

// Kind selects how a buffer takes part in diffing. Kinds combine as flags:
// Scoped|AlwaysRender is a row group that is rewritten on every refresh.
type Kind uint8

const (
	Plain        Kind = 0
	Scoped       Kind = 1 // children can be inserted, updated and deleted piecewise
	AlwaysRender Kind = 2 // never considered equal to its predecessor
)

type InstructionKind string

const (
	ScopeReplaced InstructionKind = "scope-replaced" // scoped buffer rewritten wholesale
	ScopeChanged  InstructionKind = "scope-changed"  // rows inserted and/or deleted
)

// Instruction is an out-of-band change notice for a scoped buffer.
type Instruction struct {
	Kind    InstructionKind `json:"op"`
	Scope   string          `json:"scope"`
	Inserts []Insertion     `json:"inserts,omitempty"` // nil: no inserts happened
	Deletes []string        `json:"deletes,omitempty"` // nil: no deletes happened
}

// Insertion places the row Name right after the row After. An empty After
// means the row goes first in its container.
type Insertion struct {
	After string
	Name  string
}

// MarshalJSON encodes the insertion as an [after, name] pair with a null
// after for head insertions.
func (in Insertion) MarshalJSON() ([]byte, error) {
	var after any
	if in.After != "" {
		after = in.After
	}
	return json.Marshal([2]any{after, in.Name})
}

// Stats summarizes one emit walk.
type Stats struct {
	BytesWritten   int64 `json:"bytes_written" yaml:"bytes_written"`
	Rendered       int   `json:"rendered" yaml:"rendered"` // subtrees written in full
	ScopesReplaced int   `json:"scopes_replaced" yaml:"scopes_replaced"`
	ScopesChanged  int   `json:"scopes_changed" yaml:"scopes_changed"`
	Inserts        int   `json:"inserts" yaml:"inserts"`
	Updates        int   `json:"updates" yaml:"updates"`
	Deletes        int   `json:"deletes" yaml:"deletes"`
}
