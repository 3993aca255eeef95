package vcrefresh

// scopeChanges classifies the direct children of a scoped buffer against
// its predecessor.
type scopeChanges struct {
	inserts []Insertion
	updates int
	deletes []string
	total   int
}

// checkScopeChanges walks the rows of scoped buffer id in log order. A row
// missing from the predecessor's registry is an insert placed after the row
// preceding it in the current render; a row whose checksum moved, or that
// always renders, is an update. Predecessor rows missing from the current
// registry are deletes.
func (p *pass) checkScopeChanges(id, prevID BufferID) scopeChanges {
	var ch scopeChanges
	r, pr := p.cur.rec(id), p.prev.rec(prevID)

	after := ""
	it := p.cur.log.Iterate(r.start, r.end)
	for it.Next() {
		e := it.Entry()
		if !e.IsBuffer() {
			continue
		}
		child := &p.cur.bufs[e.Buffer]
		other, ok := pr.scope[child.name]
		switch {
		case !ok:
			ch.inserts = append(ch.inserts, Insertion{After: after, Name: child.name})
			ch.total++
		case p.changed(e.Buffer, other):
			ch.updates++
			ch.total++
		}
		it.SkipTo(child.end)
		after = child.name
	}
	it.Release()

	for other := pr.first; other != NoBuffer; other = p.prev.bufs[other].next {
		name := p.prev.bufs[other].name
		if _, ok := r.scope[name]; !ok {
			ch.deletes = append(ch.deletes, name)
			ch.total++
		}
	}
	return ch
}

// writeScopedBuffer writes the wrapper of scoped buffer id with inserted
// and updated rows rendered in place and unchanged rows left out.
func (p *pass) writeScopedBuffer(id, prevID BufferID) error {
	r, pr := p.cur.rec(id), p.prev.rec(prevID)
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
		child := &p.cur.bufs[e.Buffer]
		other, ok := pr.scope[child.name]
		if !ok {
			other = NoBuffer
		}
		if p.changed(e.Buffer, other) {
			if err := p.renderAll(e.Buffer); err != nil {
				return err
			}
		}
		it.SkipTo(child.end)
	}
	return nil
}

// writeUnmodifiedChildren gives every row skipped by writeScopedBuffer a
// chance to emit changes nested below its top level.
func (p *pass) writeUnmodifiedChildren(id, prevID BufferID) error {
	r, pr := p.cur.rec(id), p.prev.rec(prevID)
	for child := r.first; child != NoBuffer; child = p.cur.bufs[child].next {
		other, ok := pr.scope[p.cur.bufs[child].name]
		if !ok || p.changed(child, other) {
			continue
		}
		if err := p.writeNextLevel(child, other); err != nil {
			return err
		}
	}
	return nil
}

// writeNextSublevel is used when the wrapper of a scoped buffer does not
// need writing: every row exists in the predecessor with the same top-level
// content, so only buffers nested inside rows can have changed.
func (p *pass) writeNextSublevel(id, prevID BufferID) error {
	r, pr := p.cur.rec(id), p.prev.rec(prevID)
	if !r.isScope() {
		violate("writeNextSublevel on plain buffer %q", r.name)
	}
	for child := r.first; child != NoBuffer; child = p.cur.bufs[child].next {
		other, ok := pr.scope[p.cur.bufs[child].name]
		if !ok {
			continue
		}
		if err := p.writeNextLevel(child, other); err != nil {
			return err
		}
	}
	return nil
}
