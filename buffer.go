package izumo

import "fmt"

// Buffer is an owned, fixed-size region of bytes. It is not safe for
// concurrent use. A Buffer must outlive every [View] derived from it —
// the View holds no reference counting of its own, exactly like the
// pointer/length pair it replaces in the original C++ source.
type Buffer struct {
	data []byte
}

// NewBuffer allocates a Buffer of the given size.
func NewBuffer(size int) *Buffer {
	if size < 0 {
		panic("izumo: negative buffer size")
	}
	return &Buffer{data: make([]byte, size)}
}

// Len returns the buffer's fixed size.
func (b *Buffer) Len() int {
	return len(b.data)
}

// View returns a View over the entire buffer.
func (b *Buffer) View() View {
	return View{data: b.data}
}

// View is a non-owning sub-range over a [Buffer]'s bytes. Unlike the
// pointer+length pair in the original C++ source, a Go View aliases the
// same backing array as its Buffer directly (Go slices already behave as
// bounds-checked views), but it carries no lifetime guarantee: it must not
// be retained beyond the lifetime of the Buffer it was produced from.
type View struct {
	data []byte
}

// NewView wraps an existing byte slice as a View, without copying.
func NewView(data []byte) View {
	return View{data: data}
}

// Len returns the number of bytes in the view.
func (v View) Len() int {
	return len(v.data)
}

// Bytes returns the underlying byte slice. Mutating it mutates the
// buffer it was derived from.
func (v View) Bytes() []byte {
	return v.data
}

// Sub returns the sub-range [begin, end) of the view. Panics if the range
// is out of bounds, matching the assertion-based contract of the original
// ByteArrayView::subView.
func (v View) Sub(begin, end int) View {
	if begin < 0 || end < begin || end > len(v.data) {
		panic(fmt.Sprintf("izumo: invalid view range [%d:%d) of length %d", begin, end, len(v.data)))
	}
	return View{data: v.data[begin:end]}
}

// SubFrom returns the sub-range [begin, Len()) of the view.
func (v View) SubFrom(begin int) View {
	return v.Sub(begin, len(v.data))
}

// SubTo returns the sub-range [0, end) of the view.
func (v View) SubTo(end int) View {
	return v.Sub(0, end)
}
