package vcrefresh

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Checksum is an order-sensitive running digest plus the number of bytes
// that went into it. Each update chains the previous sum into the next one,
// so the same fragments in a different order give a different sum.
type Checksum struct {
	Sum   uint64
	Bytes int
}

var digestPool = sync.Pool{
	New: func() any { return xxhash.New() },
}

func chain(sum uint64, p []byte, s string) uint64 {
	d := digestPool.Get().(*xxhash.Digest)
	d.Reset()
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], sum)
	_, _ = d.Write(seed[:])
	if p != nil {
		_, _ = d.Write(p)
	} else {
		_, _ = d.WriteString(s)
	}
	next := d.Sum64()
	digestPool.Put(d)
	return next
}

// Update feeds p into the checksum. Empty input leaves it unchanged.
func (c *Checksum) Update(p []byte) {
	if len(p) == 0 {
		return
	}
	c.Sum = chain(c.Sum, p, "")
	c.Bytes += len(p)
}

// UpdateString is Update for a string without copying it.
func (c *Checksum) UpdateString(s string) {
	if s == "" {
		return
	}
	c.Sum = chain(c.Sum, nil, s)
	c.Bytes += len(s)
}

// Fold mixes another finished checksum into c without rehashing the bytes
// behind it: the other sum is chained in and its byte count added.
func (c *Checksum) Fold(other Checksum) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], other.Sum)
	c.Sum = chain(c.Sum, b[:], "")
	c.Bytes += other.Bytes
}

// Combine returns a with b folded in.
func Combine(a, b Checksum) Checksum {
	a.Fold(b)
	return a
}

// Equal reports whether both the sum and the byte count match.
func (c Checksum) Equal(other Checksum) bool {
	return c.Sum == other.Sum && c.Bytes == other.Bytes
}
