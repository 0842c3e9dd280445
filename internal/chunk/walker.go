// Package chunk walks the tag-length-value streams shared by crate, database
// and history files: a 4-byte tag, a big-endian uint32 length, then payload.
package chunk

import (
	"encoding/binary"
)

// HeaderSize is the size of a tag plus its length field.
const HeaderSize = 8

// MaxDepth bounds container recursion. Containers nested deeper than this are
// returned as leaves.
const MaxDepth = 16

// Tag is a 4-byte chunk identifier. Library files use readable ASCII tags while
// history attribute tags are plain big-endian integers.
type Tag [4]byte

// NewTag builds a Tag from a 4-character string.
func NewTag(s string) Tag {
	var t Tag
	copy(t[:], s)
	return t
}

// IntTag builds a Tag from its integer form.
func IntTag(v uint32) Tag {
	var t Tag
	binary.BigEndian.PutUint32(t[:], v)
	return t
}

// String returns the Latin-1 text view of the tag.
func (t Tag) String() string {
	r := make([]rune, 4)
	for i, b := range t {
		r[i] = rune(b)
	}
	return string(r)
}

// Uint32 returns the big-endian integer view of the tag.
func (t Tag) Uint32() uint32 {
	return binary.BigEndian.Uint32(t[:])
}

// Classifier reports whether a tag is a container whose payload holds more
// chunks.
type Classifier func(Tag) bool

// Containers returns a Classifier matching the given tag names.
func Containers(names ...string) Classifier {
	set := make(map[Tag]struct{}, len(names))
	for _, n := range names {
		set[NewTag(n)] = struct{}{}
	}
	return func(t Tag) bool {
		_, ok := set[t]
		return ok
	}
}

var (
	// LibraryContainers classifies crate and database files.
	LibraryContainers = Containers("otrk")
	// HistoryContainers classifies history.database and session files.
	HistoryContainers = Containers("oses", "oent", "adat", "otrk")
)

// Chunk is one decoded record. Leaf chunks carry Data; containers carry
// Children. Data is a copy and never aliases the source buffer.
type Chunk struct {
	Tag      Tag
	Length   uint32
	Data     []byte
	Children []Chunk
}

// IsContainer reports whether the chunk was walked as a container.
func (c Chunk) IsContainer() bool {
	return c.Children != nil
}

// Find returns the first direct child with the given tag.
func (c Chunk) Find(tag Tag) (Chunk, bool) {
	for _, child := range c.Children {
		if child.Tag == tag {
			return child, true
		}
	}
	return Chunk{}, false
}

// Walker is a lazy, single-pass iterator over the top-level chunks of a range.
type Walker struct {
	buf      []byte
	pos      int
	end      int
	depth    int
	classify Classifier
	cur      Chunk
	done     bool
}

// Walk returns a Walker over buf[start:end]. Out-of-range bounds are clamped to
// the buffer. A nil classifier treats every chunk as a leaf.
func Walk(buf []byte, start, end int, classify Classifier) *Walker {
	return walkAt(buf, start, end, classify, 0)
}

func walkAt(buf []byte, start, end int, classify Classifier, depth int) *Walker {
	if end > len(buf) {
		end = len(buf)
	}
	if start < 0 {
		start = 0
	}
	if classify == nil {
		classify = func(Tag) bool { return false }
	}
	return &Walker{buf: buf, pos: start, end: end, depth: depth, classify: classify}
}

// Next advances to the next chunk. It returns false once the range is
// exhausted or the remaining bytes cannot hold a complete chunk; a truncated
// tail is dropped silently.
func (w *Walker) Next() bool {
	if w.done || w.pos+HeaderSize > w.end {
		w.done = true
		return false
	}

	var tag Tag
	copy(tag[:], w.buf[w.pos:w.pos+4])
	length := binary.BigEndian.Uint32(w.buf[w.pos+4 : w.pos+HeaderSize])
	start := w.pos + HeaderSize
	if uint64(length) > uint64(w.end-start) {
		w.done = true
		return false
	}
	end := start + int(length)

	c := Chunk{Tag: tag, Length: length}
	if w.depth < MaxDepth && w.classify(tag) {
		c.Children = Collect(walkAt(w.buf, start, end, w.classify, w.depth+1))
		if c.Children == nil {
			c.Children = []Chunk{}
		}
	} else {
		c.Data = make([]byte, length)
		copy(c.Data, w.buf[start:end])
	}

	w.cur = c
	w.pos = end
	return true
}

// Chunk returns the chunk produced by the last successful call to Next.
func (w *Walker) Chunk() Chunk {
	return w.cur
}

// Collect drains a walker into a slice.
func Collect(w *Walker) []Chunk {
	var out []Chunk
	for w.Next() {
		out = append(out, w.Chunk())
	}
	return out
}

// All walks the whole buffer and returns every top-level chunk.
func All(buf []byte, classify Classifier) []Chunk {
	return Collect(Walk(buf, 0, len(buf), classify))
}
