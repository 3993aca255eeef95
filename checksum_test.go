package vcrefresh

import "testing"

func TestChecksumOrderSensitive(t *testing.T) {
	var ab, ba Checksum
	ab.Update([]byte("a"))
	ab.Update([]byte("b"))
	ba.Update([]byte("b"))
	ba.Update([]byte("a"))
	if ab.Equal(ba) {
		t.Error("swapping fragments must change the checksum")
	}
	if ab.Bytes != 2 || ba.Bytes != 2 {
		t.Errorf("byte counts = %d, %d, want 2", ab.Bytes, ba.Bytes)
	}
}

func TestChecksumDeterministic(t *testing.T) {
	var a, b Checksum
	for _, s := range []string{"<ul>", "row", "</ul>"} {
		a.Update([]byte(s))
		b.UpdateString(s)
	}
	if !a.Equal(b) {
		t.Errorf("Update and UpdateString disagree: %+v vs %+v", a, b)
	}
}

func TestChecksumEmptyUpdate(t *testing.T) {
	var c Checksum
	c.Update(nil)
	c.Update([]byte{})
	c.UpdateString("")
	if c != (Checksum{}) {
		t.Errorf("empty updates changed checksum: %+v", c)
	}
}

func TestCombine(t *testing.T) {
	var a, b Checksum
	a.UpdateString("parent")
	b.UpdateString("child")

	ab := Combine(a, b)
	if ab.Bytes != a.Bytes+b.Bytes {
		t.Errorf("Bytes = %d, want %d", ab.Bytes, a.Bytes+b.Bytes)
	}
	if ab.Equal(Combine(b, a)) {
		t.Error("Combine must be order-sensitive")
	}
	if ab.Equal(a) {
		t.Error("Combine must change the checksum")
	}

	folded := a
	folded.Fold(b)
	if !folded.Equal(ab) {
		t.Error("Fold and Combine disagree")
	}
}

func TestChecksumEqualComparesBytes(t *testing.T) {
	a := Checksum{Sum: 1, Bytes: 3}
	b := Checksum{Sum: 1, Bytes: 4}
	if a.Equal(b) {
		t.Error("byte count mismatch must make checksums unequal")
	}
}
