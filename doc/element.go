package doc

import (
	"strings"
	"time"
)

// Element is one named, typed value inside a Document. The zero value is
// not useful; construct elements with the New* helpers below.
type Element struct {
	Name  string
	Type  Type
	Value any
}

func newElement(name string, t Type, value any) Element {
	return Element{Name: name, Type: t, Value: value}
}

func NewDouble(name string, v float64) Element           { return newElement(name, TypeDouble, v) }
func NewString(name string, v string) Element             { return newElement(name, TypeString, v) }
func NewDocumentElement(name string, v *Document) Element { return newElement(name, TypeDocument, v) }
func NewArray(name string, v Array) Element               { return newElement(name, TypeArray, v) }
func NewBinary(name string, subtype byte, data []byte) Element {
	return newElement(name, TypeBinary, Binary{Subtype: subtype, Data: data})
}
func NewUndefined(name string) Element           { return newElement(name, TypeUndefined, Undefined) }
func NewObjectIDElement(name string, v ObjectID) Element { return newElement(name, TypeObjectID, v) }
func NewBoolean(name string, v bool) Element     { return newElement(name, TypeBoolean, v) }
func NewDateTime(name string, v time.Time) Element {
	return newElement(name, TypeDateTime, v.UTC().Truncate(time.Millisecond))
}
func NewNull(name string) Element { return newElement(name, TypeNull, Null) }
func NewRegex(name, pattern, options string) Element {
	return newElement(name, TypeRegex, Regex{Pattern: pattern, Options: options})
}
func NewDBPointer(name, ns string, id ObjectID) Element {
	return newElement(name, TypeDBPointer, DBPointer{Namespace: ns, ID: id})
}
func NewCode(name, code string) Element   { return newElement(name, TypeCode, code) }
func NewSymbol(name, sym string) Element  { return newElement(name, TypeSymbol, sym) }
func NewCodeWithScope(name, code string, scope *Document) Element {
	return newElement(name, TypeCodeWithScope, CodeWithScope{Code: code, Scope: scope})
}
func NewInt32(name string, v int32) Element     { return newElement(name, TypeInt32, v) }
func NewTimestamp(name string, v Timestamp) Element { return newElement(name, TypeTimestamp, v) }
func NewInt64(name string, v int64) Element     { return newElement(name, TypeInt64, v) }
func NewMinKey(name string) Element             { return newElement(name, TypeMinKey, MinKey) }
func NewMaxKey(name string) Element             { return newElement(name, TypeMaxKey, MaxKey) }

// Size returns the element's exact encoded byte length: the type tag, the
// null-terminated name, and the type-specific payload.
func (e Element) Size() int {
	overhead := 1 + len(e.Name) + 1
	return overhead + e.payloadSize()
}

func (e Element) payloadSize() int {
	switch e.Type {
	case TypeDouble:
		return 8
	case TypeString, TypeCode, TypeSymbol:
		return 4 + len(e.Value.(string)) + 1
	case TypeDocument:
		return e.Value.(*Document).Size()
	case TypeArray:
		return e.Value.(Array).asDocument().Size()
	case TypeBinary:
		return 4 + 1 + len(e.Value.(Binary).Data)
	case TypeUndefined:
		return 0
	case TypeObjectID:
		return 12
	case TypeBoolean:
		return 1
	case TypeDateTime:
		return 8
	case TypeNull:
		return 0
	case TypeRegex:
		r := e.Value.(Regex)
		return len(r.Pattern) + 1 + len(r.Options) + 1
	case TypeDBPointer:
		p := e.Value.(DBPointer)
		return 4 + len(p.Namespace) + 1 + 12
	case TypeCodeWithScope:
		c := e.Value.(CodeWithScope)
		return 4 + 4 + len(c.Code) + 1 + c.Scope.Size()
	case TypeInt32:
		return 4
	case TypeTimestamp:
		return 8
	case TypeInt64:
		return 8
	case TypeMinKey, TypeMaxKey:
		return 0
	default:
		return 0
	}
}

// validateName reports ErrInvalidName if Name contains an interior null
// byte, which would corrupt the element's CString framing.
func (e Element) validateName() error {
	if strings.IndexByte(e.Name, 0) >= 0 {
		return ErrInvalidName
	}
	return nil
}

// numericValue returns e's value promoted to float64, plus whether e's
// type is one of the numeric types eligible for cross-numeric comparison.
func (e Element) numericValue() (float64, bool) {
	switch e.Type {
	case TypeDouble:
		return e.Value.(float64), true
	case TypeInt32:
		return float64(e.Value.(int32)), true
	case TypeInt64:
		return float64(e.Value.(int64)), true
	default:
		return 0, false
	}
}

func (e Element) stringValue() (string, bool) {
	switch e.Type {
	case TypeString, TypeSymbol:
		return e.Value.(string), true
	default:
		return "", false
	}
}

// Equal reports whether two elements compare equal per the data model's
// comparison rules: same name; numeric types (int32/int64/double) compare
// by promoted value; string and symbol compare by string value; all other
// same-type pairs compare structurally.
func (e Element) Equal(other Element) bool {
	if e.Name != other.Name {
		return false
	}

	if a, ok := e.numericValue(); ok {
		if b, ok := other.numericValue(); ok {
			return a == b
		}
		return false
	}
	if a, ok := e.stringValue(); ok {
		if b, ok := other.stringValue(); ok {
			return a == b
		}
		return false
	}

	if e.Type != other.Type {
		return false
	}

	switch e.Type {
	case TypeDocument:
		return e.Value.(*Document).Equal(other.Value.(*Document))
	case TypeArray:
		return e.Value.(Array).Equal(other.Value.(Array))
	case TypeBinary:
		a, b := e.Value.(Binary), other.Value.(Binary)
		return a.Subtype == b.Subtype && string(a.Data) == string(b.Data)
	case TypeObjectID:
		return e.Value.(ObjectID) == other.Value.(ObjectID)
	case TypeBoolean:
		return e.Value.(bool) == other.Value.(bool)
	case TypeDateTime:
		return e.Value.(time.Time).Equal(other.Value.(time.Time))
	case TypeRegex:
		return e.Value.(Regex) == other.Value.(Regex)
	case TypeDBPointer:
		return e.Value.(DBPointer) == other.Value.(DBPointer)
	case TypeCodeWithScope:
		a, b := e.Value.(CodeWithScope), other.Value.(CodeWithScope)
		return a.Code == b.Code && a.Scope.Equal(b.Scope)
	case TypeTimestamp:
		return e.Value.(Timestamp) == other.Value.(Timestamp)
	case TypeUndefined, TypeNull, TypeMinKey, TypeMaxKey:
		return true
	default:
		return false
	}
}

// Compare orders two elements by name, then by type ordinal (with
// cross-numeric promotion for double/int32/int64, and string/symbol
// treated as the same comparison class), then by value.
func (e Element) Compare(other Element) int {
	if e.Name != other.Name {
		if e.Name < other.Name {
			return -1
		}
		return 1
	}

	if a, ok := e.numericValue(); ok {
		if b, ok := other.numericValue(); ok {
			return compareFloat(a, b)
		}
	}
	if a, ok := e.stringValue(); ok {
		if b, ok := other.stringValue(); ok {
			return strings.Compare(a, b)
		}
	}

	if e.Type != other.Type {
		return compareInt(e.Type.ordinal(), other.Type.ordinal())
	}

	if e.Equal(other) {
		return 0
	}
	// Structural types without a meaningful total order beyond equality
	// fall back to their encoded byte size as a stable tiebreaker.
	return compareInt(e.Size(), other.Size())
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
