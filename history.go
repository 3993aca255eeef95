package vcrefresh

import (
	"io"
	"log/slog"
)

// History retains the tree of the last delivered render of one page so the
// next render can be diffed against it. It is not safe for concurrent use;
// refreshes of one page are expected to be serialized.
type History struct {
	engine *Engine
	prev   *Tree
}

// NewHistory returns a History using e, or a default engine when e is nil.
func NewHistory(e *Engine) *History {
	if e == nil {
		e = NewEngine()
	}
	return &History{engine: e}
}

// Flush writes cur diffed against the retained predecessor and, when that
// succeeds, commits cur. On failure the predecessor is kept and cur left
// intact, so Flush can be retried with a fresh writer.
func (h *History) Flush(w io.Writer, cur *Tree) (Stats, error) {
	stats, err := h.WriteTo(w, cur)
	if err != nil {
		return stats, err
	}
	h.Commit(cur)
	return stats, nil
}

// WriteTo writes cur diffed against the retained predecessor without
// committing it. Use it when the output is delivered later, and call Commit
// once the client has it.
func (h *History) WriteTo(w io.Writer, cur *Tree) (Stats, error) {
	stats, err := h.engine.WriteTo(w, cur, h.prev)
	if err != nil {
		h.engine.log().Warn("vcrefresh: flush failed, keeping predecessor",
			slog.String("root", cur.Name(cur.Root())),
			slog.Int64("bytes", stats.BytesWritten),
			slog.Any("error", err))
	}
	return stats, err
}

// Commit makes cur the predecessor of the next refresh and releases its
// content log.
func (h *History) Commit(cur *Tree) {
	cur.DropContents()
	h.prev = cur
}

// Predecessor returns the retained tree, or nil before the first flush.
func (h *History) Predecessor() *Tree { return h.prev }

// Reset forgets the predecessor; the next Flush renders in full.
func (h *History) Reset() { h.prev = nil }
