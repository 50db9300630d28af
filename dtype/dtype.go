// Package dtype describes the element types collective payloads are made of.
//
// The wire protocol in sparsecoll never interprets payload bytes; it only needs
// to know how many bytes one element occupies so it can turn an element count
// into a byte count for the underlying xnet.Group. DType is that one fact,
// carried as a small value type instead of a runtime-reflected size so that
// callers passing raw []byte buffers for types Go can't express a tag for
// (packed structs, foreign wire formats) still have a place to declare a
// width.
package dtype

import "fmt"

// DType is a datatype descriptor: the byte width of one element, plus a name
// used only for diagnostics.
type DType struct {
	name string
	size int
}

// Size returns the byte width of one element.
func (d DType) Size() int { return d.size }

func (d DType) String() string {
	if d.name != "" {
		return d.name
	}
	return fmt.Sprintf("dtype<%d bytes>", d.size)
}

// New declares a datatype descriptor of the given byte width. size must be
// positive; New panics otherwise, since a descriptor is declared once by
// the caller and is not a runtime condition the core recovers from.
func New(name string, size int) DType {
	if size <= 0 {
		panic(fmt.Sprintf("dtype: non-positive size %d for %q", size, name))
	}
	return DType{name: name, size: size}
}

var (
	Byte    = New("byte", 1)
	Int32   = New("int32", 4)
	Int64   = New("int64", 8)
	Float32 = New("float32", 4)
	Float64 = New("float64", 8)
)
