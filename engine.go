package vcrefresh

import (
	"io"
	"log/slog"
)

// DefaultReplaceAllThreshold is the number of row inserts, updates and
// deletes above which a scoped buffer is rewritten wholesale.
const DefaultReplaceAllThreshold = 50

// Engine emits the difference between two renders of the same page.
// An Engine holds configuration only and is safe for concurrent use when
// its encoder is. A Recorder is not.
type Engine struct {
	threshold int
	enc       InstructionEncoder
	logger    *slog.Logger
}

type Option func(*Engine)

// WithReplaceAllThreshold sets the change count above which a scoped buffer
// is replaced instead of patched. Negative values are treated as zero.
func WithReplaceAllThreshold(n int) Option {
	return func(e *Engine) {
		if n < 0 {
			n = 0
		}
		e.threshold = n
	}
}

// WithEncoder sets how change instructions are written. The default is a
// ScriptEncoder.
func WithEncoder(enc InstructionEncoder) Option {
	return func(e *Engine) { e.enc = enc }
}

// WithLogger overrides the package logger for this engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		threshold: DefaultReplaceAllThreshold,
		enc:       ScriptEncoder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Threshold() int { return e.threshold }

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return Logger()
}

// WriteTo writes to w what a client holding the rendering of prev needs to
// show cur. A nil prev renders cur in full. On error the walk stops; what
// was already written must not be delivered.
func (e *Engine) WriteTo(w io.Writer, cur, prev *Tree) (Stats, error) {
	prevRoot := NoBuffer
	if prev != nil {
		prevRoot = prev.Root()
	}
	return e.WriteBuffer(w, cur, cur.Root(), prev, prevRoot)
}

// WriteBuffer diffs buffer id of cur against buffer prevID of prev. Pass
// NoBuffer (or a nil prev) when the buffer has no predecessor.
func (e *Engine) WriteBuffer(w io.Writer, cur *Tree, id BufferID, prev *Tree, prevID BufferID) (Stats, error) {
	if prev == nil {
		prevID = NoBuffer
	}
	p := e.newPass(w, cur, prev)
	err := p.writeTo(id, prevID)
	e.log().Debug("vcrefresh: emit walk done",
		slog.String("buffer", cur.Name(id)),
		slog.Bool("predecessor", prevID != NoBuffer),
		slog.Int64("bytes", p.stats.BytesWritten),
		slog.Int("rendered", p.stats.Rendered),
		slog.Int("scopes_changed", p.stats.ScopesChanged),
		slog.Int("scopes_replaced", p.stats.ScopesReplaced))
	return p.stats, err
}

// RenderAll writes the full content of buffer id, descendants included.
func (e *Engine) RenderAll(w io.Writer, t *Tree, id BufferID) (Stats, error) {
	p := e.newPass(w, t, nil)
	err := p.renderAll(id)
	return p.stats, err
}

func (e *Engine) newPass(w io.Writer, cur, prev *Tree) *pass {
	if !cur.finished {
		violate("diffing an unfinished tree")
	}
	if cur.dropped {
		violate("diffing a tree whose contents were dropped")
	}
	if prev != nil && !prev.finished {
		violate("predecessor tree is unfinished")
	}
	return &pass{e: e, w: w, cur: cur, prev: prev}
}

// pass is the state of one emit walk.
type pass struct {
	e     *Engine
	w     io.Writer
	cur   *Tree
	prev  *Tree
	stats Stats
}

func (p *pass) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.stats.BytesWritten += int64(n)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return n, err
}

func (p *pass) write(b []byte, id BufferID) error {
	if _, err := p.Write(b); err != nil {
		return &WriteError{Buffer: p.cur.Name(id), Err: err}
	}
	return nil
}

func (p *pass) emit(in Instruction, id BufferID) error {
	if err := p.e.enc.Encode(p, in); err != nil {
		return &WriteError{Buffer: p.cur.Name(id), Err: err}
	}
	return nil
}

func (p *pass) changed(id, prevID BufferID) bool {
	r := p.cur.rec(id)
	return r.alwaysRender() || prevID == NoBuffer || !r.sum.Equal(p.prev.rec(prevID).sum)
}

// writeTo emits buffer id against its predecessor prevID. A scoped buffer
// whose rows were only deleted gets no wrapper, just its instruction.
func (p *pass) writeTo(id, prevID BufferID) error {
	r := p.cur.rec(id)
	if p.changed(id, prevID) {
		if err := p.renderAll(id); err != nil {
			return err
		}
		if r.isScope() {
			return p.replaced(id)
		}
		return nil
	}
	if !r.isScope() {
		return p.writeNextLevel(id, prevID)
	}

	ch := p.checkScopeChanges(id, prevID)
	switch {
	case ch.total == 0:
		return p.writeNextSublevel(id, prevID)
	case ch.total > p.e.threshold:
		p.e.log().Info("vcrefresh: replacing scope",
			slog.String("scope", r.name),
			slog.Int("changes", ch.total),
			slog.Int("threshold", p.e.threshold))
		if err := p.renderAll(id); err != nil {
			return err
		}
		return p.replaced(id)
	}

	p.stats.ScopesChanged++
	p.stats.Inserts += len(ch.inserts)
	p.stats.Updates += ch.updates
	p.stats.Deletes += len(ch.deletes)
	p.e.log().Debug("vcrefresh: patching scope",
		slog.String("scope", r.name),
		slog.Int("inserts", len(ch.inserts)),
		slog.Int("updates", ch.updates),
		slog.Int("deletes", len(ch.deletes)))

	if ch.inserts != nil || ch.updates > 0 {
		if err := p.writeScopedBuffer(id, prevID); err != nil {
			return err
		}
		// outside the wrapper so the output stays well formed
		if err := p.writeUnmodifiedChildren(id, prevID); err != nil {
			return err
		}
	} else if err := p.writeNextSublevel(id, prevID); err != nil {
		return err
	}
	if ch.inserts == nil && ch.deletes == nil {
		return nil
	}
	return p.emit(Instruction{
		Kind:    ScopeChanged,
		Scope:   r.name,
		Inserts: ch.inserts,
		Deletes: ch.deletes,
	}, id)
}

func (p *pass) replaced(id BufferID) error {
	p.stats.ScopesReplaced++
	return p.emit(Instruction{Kind: ScopeReplaced, Scope: p.cur.Name(id)}, id)
}

func (p *pass) renderAll(id BufferID) error {
	p.stats.Rendered++
	return p.render(id)
}

func (p *pass) render(id BufferID) error {
	r := p.cur.rec(id)
	it := p.cur.log.Iterate(r.start, r.end)
	defer it.Release()
	for it.Next() {
		e := it.Entry()
		if !e.IsBuffer() {
			if err := p.write(e.Fragment, id); err != nil {
				return err
			}
			continue
		}
		if err := p.render(e.Buffer); err != nil {
			return err
		}
		it.SkipTo(p.cur.bufs[e.Buffer].end)
	}
	return nil
}

// writeNextLevel skips the top-level content of an unchanged plain buffer
// and lets each child decide for itself. Children pair up by position: any
// insertion or removal would have changed the parent's checksum.
func (p *pass) writeNextLevel(id, prevID BufferID) error {
	r := p.cur.rec(id)
	if r.isScope() {
		violate("writeNextLevel on scoped buffer %q", r.name)
	}
	other := p.prev.rec(prevID).first
	for child := r.first; child != NoBuffer; child = p.cur.bufs[child].next {
		if err := p.writeTo(child, other); err != nil {
			return err
		}
		if other != NoBuffer {
			other = p.prev.bufs[other].next
		}
	}
	return nil
}
