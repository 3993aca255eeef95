package vcrefresh

import "sync"

// Entry is one slot of a ContentLog: either a fragment or a reference to
// the buffer whose content starts at the next slot.
type Entry struct {
	Fragment Fragment
	Buffer   BufferID
}

// IsBuffer reports whether the entry references a buffer.
func (e Entry) IsBuffer() bool { return e.Buffer != NoBuffer }

// ContentLog is the append-only sequence shared by every buffer of one
// render pass. Indices stay valid for the life of the log.
type ContentLog struct {
	entries []Entry
	dropped bool
}

func NewContentLog() *ContentLog {
	return &ContentLog{entries: make([]Entry, 0, 256)}
}

// AppendFragment appends f and returns its index.
func (l *ContentLog) AppendFragment(f Fragment) int {
	l.entries = append(l.entries, Entry{Fragment: f, Buffer: NoBuffer})
	return len(l.entries) - 1
}

func (l *ContentLog) appendBuffer(id BufferID) int {
	l.entries = append(l.entries, Entry{Buffer: id})
	return len(l.entries) - 1
}

// Len is the index the next append will get.
func (l *ContentLog) Len() int { return len(l.entries) }

// At returns the entry at index i.
func (l *ContentLog) At(i int) Entry {
	if i < 0 || i >= len(l.entries) {
		violate("log index %d out of range [0,%d)", i, len(l.entries))
	}
	return l.entries[i]
}

// Iterate returns a cursor over the half-open range [start, end). Release
// the cursor when done with it.
func (l *ContentLog) Iterate(start, end int) *Cursor {
	if l.dropped {
		violate("iterating a log whose contents were dropped")
	}
	if start < 0 || start > end || end > len(l.entries) {
		violate("log range [%d,%d) out of bounds [0,%d)", start, end, len(l.entries))
	}
	c := cursorPool.Get().(*Cursor)
	c.log = l
	c.pos = start
	c.end = end
	c.cur = -1
	return c
}

func (l *ContentLog) drop() {
	l.entries = nil
	l.dropped = true
}

var cursorPool = sync.Pool{
	New: func() any { return new(Cursor) },
}

// Cursor is a single-pass, forward-only walk over a range of a ContentLog.
type Cursor struct {
	log *ContentLog
	pos int // next index Next will visit
	end int
	cur int
}

// Next advances to the next entry and reports whether there was one.
func (c *Cursor) Next() bool {
	if c.pos >= c.end {
		return false
	}
	c.cur = c.pos
	c.pos++
	return true
}

// Entry returns the entry Next stopped on.
func (c *Cursor) Entry() Entry { return c.log.entries[c.cur] }

// Index returns the log index of the current entry.
func (c *Cursor) Index() int { return c.cur }

// SkipTo makes index i the next entry visited. It never moves backward and
// never past the end of the range.
func (c *Cursor) SkipTo(i int) {
	if i < c.pos || i > c.end {
		violate("skip to %d outside [%d,%d]", i, c.pos, c.end)
	}
	c.pos = i
}

// Release returns the cursor to the pool. The cursor must not be used
// afterwards.
func (c *Cursor) Release() {
	c.log = nil
	cursorPool.Put(c)
}
