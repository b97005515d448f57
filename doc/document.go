package doc

import (
	"strconv"
	"sync"
)

// Document is an ordered sequence of elements with distinct names.
// Documents are immutable: every mutating-looking operation (Append,
// WithID, ...) returns a new Document rather than modifying the
// receiver, so a Document handed to a callback can be safely retained.
type Document struct {
	elements []Element

	indexOnce sync.Once
	index     map[string]int
}

// NewDocument builds a Document from elements in the given order. It
// returns ErrInvalidName if an element name contains a null byte, and
// ErrDuplicateName if two elements share a name.
func NewDocument(elements ...Element) (*Document, error) {
	seen := make(map[string]struct{}, len(elements))
	for _, e := range elements {
		if err := e.validateName(); err != nil {
			return nil, err
		}
		if _, dup := seen[e.Name]; dup {
			return nil, ErrDuplicateName
		}
		seen[e.Name] = struct{}{}
	}
	return &Document{elements: append([]Element(nil), elements...)}, nil
}

// MustDocument is like NewDocument but panics on error; useful for
// building literal documents in tests and static configuration.
func MustDocument(elements ...Element) *Document {
	d, err := NewDocument(elements...)
	if err != nil {
		panic(err)
	}
	return d
}

// Empty is the zero-element document {}.
func Empty() *Document { return &Document{} }

// Elements returns the document's elements in order. The returned slice
// must not be mutated.
func (d *Document) Elements() []Element {
	if d == nil {
		return nil
	}
	return d.elements
}

// Len returns the number of elements.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elements)
}

func (d *Document) buildIndex() {
	d.indexOnce.Do(func() {
		idx := make(map[string]int, len(d.elements))
		for i, e := range d.elements {
			idx[e.Name] = i
		}
		d.index = idx
	})
}

// Get looks up an element by name in O(1) via a lazily built index.
func (d *Document) Get(name string) (Element, bool) {
	if d == nil {
		return Element{}, false
	}
	d.buildIndex()
	i, ok := d.index[name]
	if !ok {
		return Element{}, false
	}
	return d.elements[i], true
}

// Matcher is one step of a Path query: a name predicate applied at one
// depth of a depth-first descent into nested documents and arrays.
type Matcher func(name string) bool

// Literal matches a single exact name.
func Literal(name string) Matcher {
	return func(n string) bool { return n == name }
}

// Any matches every name at its depth.
func Any() Matcher {
	return func(string) bool { return true }
}

// Path applies matchers depth-first, returning every element reachable
// by a sequence of names (or array indices, as strings) each satisfying
// the matcher at its depth.
func (d *Document) Path(matchers ...Matcher) []Element {
	if d == nil || len(matchers) == 0 {
		return nil
	}
	var out []Element
	pathWalk(d.elements, matchers, &out)
	return out
}

func pathWalk(elements []Element, matchers []Matcher, out *[]Element) {
	head, rest := matchers[0], matchers[1:]
	for _, e := range elements {
		if !head(e.Name) {
			continue
		}
		if len(rest) == 0 {
			*out = append(*out, e)
			continue
		}
		switch e.Type {
		case TypeDocument:
			pathWalk(e.Value.(*Document).elements, rest, out)
		case TypeArray:
			pathWalk(e.Value.(Array).asDocument().elements, rest, out)
		}
	}
}

// Append returns a new Document with e added at the end. It returns
// ErrDuplicateName if e's name already exists.
func (d *Document) Append(e Element) (*Document, error) {
	if _, exists := d.Get(e.Name); exists {
		return nil, ErrDuplicateName
	}
	next := make([]Element, len(d.Elements())+1)
	copy(next, d.Elements())
	next[len(next)-1] = e
	return &Document{elements: next}, nil
}

// WithID returns d unchanged if it already has a top-level "_id" element,
// or a new Document with a fresh ObjectID injected as the first element
// otherwise. This is the one-shot, idempotent "inject an identifier on
// first insert" step: calling it twice on the same input is a no-op the
// second time because the presence check short-circuits.
func (d *Document) WithID() *Document {
	if _, exists := d.Get("_id"); exists {
		return d
	}
	elements := d.Elements()
	next := make([]Element, len(elements)+1)
	next[0] = NewObjectIDElement("_id", NewObjectID())
	copy(next[1:], elements)
	return &Document{elements: next}
}

// Size returns d's exact encoded byte length: the 4-byte length prefix,
// every element, and the trailing null byte. It never serializes d.
func (d *Document) Size() int {
	if d == nil {
		return 5 // empty document: int32 length + null
	}
	total := 4 + 1
	for _, e := range d.elements {
		total += e.Size()
	}
	return total
}

// Equal compares two documents element-by-element in order, using
// Element.Equal for each pair.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.elements) != len(other.elements) {
		return false
	}
	for i, e := range d.elements {
		if !e.Equal(other.elements[i]) {
			return false
		}
	}
	return true
}

// Array is an ordered list of values, encoded on the wire as a Document
// whose element names are the stringified indices "0", "1", "2", ....
type Array []Element

// NewArrayOf builds an Array from elements in order, renaming each one
// to its stringified index ("0", "1", ...).
func NewArrayOf(elements ...Element) Array {
	out := make(Array, len(elements))
	for i, e := range elements {
		e.Name = strconv.Itoa(i)
		out[i] = e
	}
	return out
}

func (a Array) asDocument() *Document {
	return &Document{elements: a}
}

func (a Array) Size() int {
	return a.asDocument().Size()
}

func (a Array) Equal(other Array) bool {
	return a.asDocument().Equal(other.asDocument())
}
