package vcrefresh

import (
	"bytes"
	"errors"
	"testing"
)

func TestHistoryFlush(t *testing.T) {
	h := NewHistory(nil)
	if h.Predecessor() != nil {
		t.Fatal("new history has a predecessor")
	}

	first := build(samplePage("two", false))
	full := first.FullSize()
	var buf bytes.Buffer
	stats, err := h.Flush(&buf, first)
	if err != nil {
		t.Fatalf("first Flush failed: %v", err)
	}
	if buf.Len() != full || stats.Rendered != 1 {
		t.Errorf("first flush wrote %d bytes (Rendered %d), want full render of %d", buf.Len(), stats.Rendered, full)
	}
	if h.Predecessor() != first || !first.Dropped() {
		t.Error("flushed tree was not retained with its contents dropped")
	}

	buf.Reset()
	second := build(samplePage("TWO", false))
	if _, err := h.Flush(&buf, second); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
	want := "<table><tr><td>TWO</td></tr></table><time>now</time>"
	if buf.String() != want {
		t.Errorf("second flush = %q, want %q", buf.String(), want)
	}
	if h.Predecessor() != second {
		t.Error("predecessor not advanced")
	}
}

func TestHistoryFailureKeepsPredecessor(t *testing.T) {
	h := NewHistory(NewEngine())
	first := build(samplePage("two", false))
	if _, err := h.Flush(&bytes.Buffer{}, first); err != nil {
		t.Fatal(err)
	}

	next := build(samplePage("TWO", true))
	_, err := h.Flush(&failWriter{}, next)
	if !errors.Is(err, ErrWrite) || !errors.Is(err, errBoom) {
		t.Fatalf("Flush error = %v, want write error wrapping errBoom", err)
	}
	if h.Predecessor() != first {
		t.Fatal("failed flush replaced the predecessor")
	}
	if next.Dropped() {
		t.Fatal("failed flush dropped the new tree")
	}

	var buf bytes.Buffer
	if _, err := h.Flush(&buf, next); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if buf.Len() == 0 || h.Predecessor() != next {
		t.Errorf("retry wrote %q, predecessor advanced: %v", buf.String(), h.Predecessor() == next)
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(nil)
	if _, err := h.Flush(&bytes.Buffer{}, build(samplePage("two", false))); err != nil {
		t.Fatal(err)
	}
	h.Reset()
	if h.Predecessor() != nil {
		t.Fatal("Reset kept the predecessor")
	}
	cur := build(samplePage("two", false))
	full := cur.FullSize()
	var buf bytes.Buffer
	if _, err := h.Flush(&buf, cur); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != full {
		t.Errorf("flush after Reset wrote %d bytes, want %d", buf.Len(), full)
	}
}

func TestHistoryRejectsDroppedTree(t *testing.T) {
	h := NewHistory(nil)
	cur := build(samplePage("two", false))
	if _, err := h.Flush(&bytes.Buffer{}, cur); err != nil {
		t.Fatal(err)
	}
	expectPrecondition(t, func() { h.Flush(&bytes.Buffer{}, cur) })
}

func TestHistoryWriteToDoesNotCommit(t *testing.T) {
	h := NewHistory(nil)
	first := build(samplePage("two", false))
	if _, err := h.Flush(&bytes.Buffer{}, first); err != nil {
		t.Fatal(err)
	}

	cur := build(samplePage("TWO", false))
	var a, b bytes.Buffer
	if _, err := h.WriteTo(&a, cur); err != nil {
		t.Fatal(err)
	}
	if h.Predecessor() != first || cur.Dropped() {
		t.Fatal("WriteTo committed the tree")
	}
	if _, err := h.WriteTo(&b, cur); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Errorf("repeated WriteTo differs: %q vs %q", a.String(), b.String())
	}

	h.Commit(cur)
	if h.Predecessor() != cur || !cur.Dropped() {
		t.Error("Commit did not retain the tree")
	}
}
