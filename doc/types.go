package doc

// Type is the wire tag byte identifying an Element's value shape. The set
// is closed: every case below is handled explicitly in Encode, Decode, and
// Size; there is no open-world extension point.
type Type byte

const (
	TypeDouble        Type = 0x01
	TypeString        Type = 0x02
	TypeDocument      Type = 0x03
	TypeArray         Type = 0x04
	TypeBinary        Type = 0x05
	TypeUndefined     Type = 0x06
	TypeObjectID      Type = 0x07
	TypeBoolean       Type = 0x08
	TypeDateTime      Type = 0x09
	TypeNull          Type = 0x0A
	TypeRegex         Type = 0x0B
	TypeDBPointer     Type = 0x0C
	TypeCode          Type = 0x0D
	TypeSymbol        Type = 0x0E
	TypeCodeWithScope Type = 0x0F
	TypeInt32         Type = 0x10
	TypeTimestamp     Type = 0x11
	TypeInt64         Type = 0x12
	TypeMinKey        Type = 0xFF
	TypeMaxKey        Type = 0x7F
)

func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeDocument:
		return "document"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		return "objectId"
	case TypeBoolean:
		return "bool"
	case TypeDateTime:
		return "date"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeDBPointer:
		return "dbPointer"
	case TypeCode:
		return "javascript"
	case TypeSymbol:
		return "symbol"
	case TypeCodeWithScope:
		return "javascriptWithScope"
	case TypeInt32:
		return "int"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "long"
	case TypeMinKey:
		return "minKey"
	case TypeMaxKey:
		return "maxKey"
	default:
		return "invalid"
	}
}

// ordinal gives the total ordering used by Element.Compare for values of
// different types that are not cross-numeric-promotable.
func (t Type) ordinal() int {
	switch t {
	case TypeMinKey:
		return -1
	case TypeMaxKey:
		return 1 << 20
	default:
		return int(t)
	}
}

// Binary is the value of a TypeBinary element.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Regex is the value of a TypeRegex element.
type Regex struct {
	Pattern string
	Options string
}

// DBPointer is the value of a deprecated TypeDBPointer element.
type DBPointer struct {
	Namespace string
	ID        ObjectID
}

// CodeWithScope is the value of a TypeCodeWithScope element.
type CodeWithScope struct {
	Code  string
	Scope *Document
}

// Timestamp is the value of a TypeTimestamp element: an internal MongoDB
// replication timestamp, distinct from TypeDateTime. Increment is the
// ordinal within a given second; Time is seconds since the epoch.
type Timestamp struct {
	Increment int32
	Time      int32
}

// undefinedValue and friends are the canonical, comparable Go values used
// for elements that carry no payload.
type undefinedValue struct{}
type nullValue struct{}
type minKeyValue struct{}
type maxKeyValue struct{}

var (
	Undefined undefinedValue
	Null      nullValue
	MinKey    minKeyValue
	MaxKey    maxKeyValue
)
