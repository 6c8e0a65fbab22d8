package wire

import (
	"bytes"
	"io"
)

// lazyList defers decoding a varInt-counted list of items until something
// actually asks for them, and re-uses the original bytes on re-encode if
// nothing has mutated the list. This is the concrete mechanism behind
// spec.md §4.1's lazy parsing and §9's "dirty-flag propagation via an
// explicit parent index": a lazyList does not own its parent, it just
// calls onDirty() when mutated, and the parent is responsible for
// propagating that upward.
type lazyList[T any] struct {
	raw    []byte // encoded items only, not including the count prefix
	count  uint64
	items  []T
	parsed bool
	dirty  bool

	decode func(r io.Reader) (T, error)
	encode func(w io.Writer, item T) error

	onDirty func() // notifies the owning message; nil-safe
}

func newLazyList[T any](
	raw []byte,
	count uint64,
	decode func(io.Reader) (T, error),
	encode func(io.Writer, T) error,
) *lazyList[T] {
	return &lazyList[T]{
		raw:    raw,
		count:  count,
		decode: decode,
		encode: encode,
	}
}

func newLazyListFromItems[T any](
	items []T,
	decode func(io.Reader) (T, error),
	encode func(io.Writer, T) error,
) *lazyList[T] {
	return &lazyList[T]{
		items:   items,
		count:   uint64(len(items)),
		parsed:  true,
		dirty:   true,
		decode:  decode,
		encode:  encode,
	}
}

// Items forces a parse (if not already done) and returns the decoded
// slice. The returned slice may be mutated by the caller via Set/Append;
// direct slice mutation will NOT mark the list dirty — use Set/Append.
func (l *lazyList[T]) Items() ([]T, error) {
	if l.parsed {
		return l.items, nil
	}
	r := bytes.NewReader(l.raw)
	items := make([]T, 0, l.count)
	for i := uint64(0); i < l.count; i++ {
		item, err := l.decode(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	l.items = items
	l.parsed = true
	return l.items, nil
}

// Len returns the item count without forcing a parse.
func (l *lazyList[T]) Len() uint64 {
	return l.count
}

// Set replaces the item at index i and marks the list (and its parent)
// dirty, forcing re-serialization from structured state next time Bytes
// is called.
func (l *lazyList[T]) Set(i int, item T) error {
	if _, err := l.Items(); err != nil {
		return err
	}
	l.items[i] = item
	l.markDirty()
	return nil
}

// Append adds an item to the end of the list and marks it dirty.
func (l *lazyList[T]) Append(item T) error {
	if _, err := l.Items(); err != nil {
		return err
	}
	l.items = append(l.items, item)
	l.count++
	l.markDirty()
	return nil
}

func (l *lazyList[T]) markDirty() {
	l.dirty = true
	if l.onDirty != nil {
		l.onDirty()
	}
}

// Bytes returns the encoded item bytes (not including the varInt count
// prefix). If the list was parsed from raw bytes and never mutated, the
// original bytes are returned unchanged (lazy-parse idempotence, spec.md
// §8 invariant 4). Otherwise it re-serializes from structured state.
func (l *lazyList[T]) Bytes() ([]byte, error) {
	if !l.dirty && l.raw != nil {
		return l.raw, nil
	}
	var buf bytes.Buffer
	items, err := l.Items()
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := l.encode(&buf, item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Encode writes the varInt count followed by the item bytes.
func (l *lazyList[T]) Encode(w io.Writer) error {
	if err := WriteVarInt(w, l.count); err != nil {
		return err
	}
	b, err := l.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
