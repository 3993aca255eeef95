package vcrefresh

import "bytes"

type record struct {
	name             string
	kind             Kind
	ignoreWhitespace bool
	closed           bool
	start, end       int // [start,end) in the content log
	sum              Checksum
	parent           BufferID
	first, next      BufferID
	tail             BufferID            // last child, for O(1) append
	scope            map[string]BufferID // scoped buffers only
}

func (r *record) isScope() bool      { return r.kind&Scoped != 0 }
func (r *record) alwaysRender() bool { return r.kind&AlwaysRender != 0 }

// Tree holds the buffers of one render pass and the ContentLog they point
// into. A Tree is built by a single goroutine; after Finish it is read-only
// and may be handed to another goroutine for diffing.
type Tree struct {
	log      *ContentLog
	bufs     []record
	stack    []BufferID
	root     BufferID
	finished bool
	dropped  bool

	ignoreWhitespace bool
	fullSize         int
}

type TreeOption func(*Tree)

// IgnoreWhitespace makes plain buffers skip whitespace-only fragments when
// accumulating their checksum. Scoped buffers always skip them.
func IgnoreWhitespace() TreeOption {
	return func(t *Tree) { t.ignoreWhitespace = true }
}

func NewTree(opts ...TreeOption) *Tree {
	t := &Tree{
		log:  NewContentLog(),
		bufs: make([]record, 0, 32),
		root: NoBuffer,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tree) rec(id BufferID) *record {
	if id < 0 || int(id) >= len(t.bufs) {
		violate("unknown buffer %d", id)
	}
	return &t.bufs[id]
}

func (t *Tree) mutable() {
	if t.finished || t.dropped {
		violate("tree is read-only")
	}
}

// Open creates a buffer starting at the current end of the log. The buffer
// still has to be linked with AppendChild or made the root with SetRoot.
func (t *Tree) Open(name string, kind Kind) BufferID {
	t.mutable()
	if name == "" {
		violate("buffer name is empty")
	}
	id := BufferID(len(t.bufs))
	r := record{
		name:             name,
		kind:             kind,
		ignoreWhitespace: kind&Scoped != 0 || t.ignoreWhitespace,
		start:            t.log.Len(),
		end:              t.log.Len(),
		parent:           NoBuffer,
		first:            NoBuffer,
		next:             NoBuffer,
		tail:             NoBuffer,
	}
	if r.isScope() {
		r.scope = make(map[string]BufferID)
	}
	t.bufs = append(t.bufs, r)
	return id
}

// SetRoot makes an unlinked buffer the root of the tree.
func (t *Tree) SetRoot(id BufferID) {
	t.mutable()
	r := t.rec(id)
	if t.root != NoBuffer {
		violate("tree already has root %q", t.bufs[t.root].name)
	}
	if r.parent != NoBuffer {
		violate("buffer %q is already a child", r.name)
	}
	t.root = id
}

// AppendChild links child as the last child of parent and records it in the
// log. A plain parent folds the child's name into its checksum; a scoped
// parent registers the child by name instead.
func (t *Tree) AppendChild(parent, child BufferID) {
	t.mutable()
	p, c := t.rec(parent), t.rec(child)
	switch {
	case p.closed:
		violate("appending %q to closed buffer %q", c.name, p.name)
	case c.parent != NoBuffer || child == t.root || child == parent:
		violate("buffer %q is already linked", c.name)
	case c.closed || c.start != t.log.Len():
		violate("buffer %q received content before being appended", c.name)
	case p.isScope() && c.isScope():
		violate("scoped buffer %q nested directly inside scoped buffer %q", c.name, p.name)
	case p.tail != NoBuffer && !t.bufs[p.tail].closed:
		violate("appending %q while sibling %q is open", c.name, t.bufs[p.tail].name)
	}
	if p.isScope() {
		if _, dup := p.scope[c.name]; dup {
			violate("duplicate child %q in scoped buffer %q", c.name, p.name)
		}
		p.scope[c.name] = child
	} else {
		p.sum.UpdateString(c.name)
	}

	if p.first == NoBuffer {
		p.first = child
	} else {
		t.bufs[p.tail].next = child
	}
	p.tail = child
	c.parent = parent

	t.log.appendBuffer(child)
	// the reference entry is not part of the child's own content
	c.start++
	c.end = c.start
}

// AppendFragment appends f to the log on behalf of buffer id.
func (t *Tree) AppendFragment(id BufferID, f Fragment) {
	t.mutable()
	r := t.rec(id)
	if r.closed {
		violate("appending to closed buffer %q", r.name)
	}
	if r.tail != NoBuffer && !t.bufs[r.tail].closed {
		violate("appending to %q while child %q is open", r.name, t.bufs[r.tail].name)
	}
	t.log.AppendFragment(f)
	t.fullSize += len(f)
	if r.ignoreWhitespace && isBlank(f) {
		return
	}
	r.sum.Update(f)
}

// Close fixes the end of buffer id. All of its children must be closed.
func (t *Tree) Close(id BufferID) {
	t.mutable()
	r := t.rec(id)
	if r.closed {
		violate("buffer %q closed twice", r.name)
	}
	if r.tail != NoBuffer && !t.bufs[r.tail].closed {
		violate("closing %q before child %q", r.name, t.bufs[r.tail].name)
	}
	r.end = t.log.Len()
	r.closed = true
}

// SetIgnoreWhitespace toggles whitespace-insensitivity of a plain buffer.
// It only affects fragments appended afterwards.
func (t *Tree) SetIgnoreWhitespace(id BufferID, ignore bool) {
	t.mutable()
	r := t.rec(id)
	if r.isScope() {
		violate("scoped buffer %q always ignores whitespace", r.name)
	}
	r.ignoreWhitespace = ignore
}

// FoldInto attributes the checksum of a closed buffer to one of its
// ancestors without its name, so a content change of child makes ancestor
// unequal to its predecessor while child's position stays irrelevant.
func (t *Tree) FoldInto(child, ancestor BufferID) {
	t.mutable()
	c, a := t.rec(child), t.rec(ancestor)
	if !c.closed {
		violate("folding open buffer %q", c.name)
	}
	p := c.parent
	for p != NoBuffer && p != ancestor {
		p = t.bufs[p].parent
	}
	if p == NoBuffer {
		violate("%q is not an ancestor of %q", a.name, c.name)
	}
	a.sum.Fold(c.sum)
}

// Push opens a buffer under the innermost open buffer, or as the root when
// nothing is open, and makes it the target of Append.
func (t *Tree) Push(name string, kind Kind) BufferID {
	id := t.Open(name, kind)
	if len(t.stack) == 0 {
		t.SetRoot(id)
	} else {
		t.AppendChild(t.stack[len(t.stack)-1], id)
	}
	t.stack = append(t.stack, id)
	return id
}

// Pop closes the innermost open buffer.
func (t *Tree) Pop() BufferID {
	if len(t.stack) == 0 {
		violate("pop with no open buffer")
	}
	id := t.stack[len(t.stack)-1]
	t.Close(id)
	t.stack = t.stack[:len(t.stack)-1]
	return id
}

// Top returns the innermost open buffer, or NoBuffer.
func (t *Tree) Top() BufferID {
	if len(t.stack) == 0 {
		return NoBuffer
	}
	return t.stack[len(t.stack)-1]
}

// Append appends f to the innermost open buffer.
func (t *Tree) Append(f Fragment) {
	top := t.Top()
	if top == NoBuffer {
		violate("append with no open buffer")
	}
	t.AppendFragment(top, f)
}

func (t *Tree) AppendString(s string) { t.Append(Fragment(s)) }

// Finish ends construction. Every pushed buffer must have been popped.
func (t *Tree) Finish() {
	t.mutable()
	if len(t.stack) != 0 {
		violate("finishing with %d open buffers", len(t.stack))
	}
	if t.root == NoBuffer {
		violate("finishing a tree without root")
	}
	if !t.bufs[t.root].closed {
		violate("root %q is not closed", t.bufs[t.root].name)
	}
	t.finished = true
}

// DropContents releases the content log of a finished tree. The buffer
// records stay, which is all a tree needs to serve as a predecessor.
func (t *Tree) DropContents() {
	if !t.finished {
		violate("dropping contents of an unfinished tree")
	}
	t.log.drop()
	t.dropped = true
}

func (t *Tree) Root() BufferID          { return t.root }
func (t *Tree) Log() *ContentLog        { return t.log }
func (t *Tree) Len() int                { return len(t.bufs) }
func (t *Tree) Finished() bool          { return t.finished }
func (t *Tree) Dropped() bool           { return t.dropped }
func (t *Tree) FullSize() int           { return t.fullSize }
func (t *Tree) Name(id BufferID) string { return t.rec(id).name }
func (t *Tree) Kind(id BufferID) Kind   { return t.rec(id).kind }
func (t *Tree) IsScope(id BufferID) bool {
	return id != NoBuffer && t.rec(id).isScope()
}
func (t *Tree) Checksum(id BufferID) Checksum   { return t.rec(id).sum }
func (t *Tree) Parent(id BufferID) BufferID     { return t.rec(id).parent }
func (t *Tree) FirstChild(id BufferID) BufferID { return t.rec(id).first }
func (t *Tree) NextSibling(id BufferID) BufferID {
	return t.rec(id).next
}

// Range returns the [start,end) log range of a buffer's own content.
func (t *Tree) Range(id BufferID) (start, end int) {
	r := t.rec(id)
	return r.start, r.end
}

// Children returns the direct children of id in append order.
func (t *Tree) Children(id BufferID) []BufferID {
	var out []BufferID
	for c := t.rec(id).first; c != NoBuffer; c = t.bufs[c].next {
		out = append(out, c)
	}
	return out
}

// ScopeChild looks a direct child of a scoped buffer up by name.
func (t *Tree) ScopeChild(id BufferID, name string) (BufferID, bool) {
	r := t.rec(id)
	if !r.isScope() {
		violate("scope lookup on plain buffer %q", r.name)
	}
	c, ok := r.scope[name]
	return c, ok
}

// Equal reports whether buffer a of t and buffer b of other have matching
// checksums and byte counts.
func (t *Tree) Equal(a BufferID, other *Tree, b BufferID) bool {
	return t.rec(a).sum.Equal(other.rec(b).sum)
}

func isBlank(f Fragment) bool {
	return len(bytes.TrimSpace(f)) == 0
}
