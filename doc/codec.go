package doc

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// Encode returns d's wire representation, sized exactly via Size so no
// reallocation happens while appending.
func (d *Document) Encode() []byte {
	out := make([]byte, 0, d.Size())
	return appendDocument(out, d)
}

// EncodeAppend appends d's wire representation to dst and returns the
// extended slice, for callers (the message envelope, the planner) that
// want to build one frame out of several documents without an
// intermediate allocation per document.
func EncodeAppend(dst []byte, d *Document) []byte {
	return appendDocument(dst, d)
}

func appendDocument(dst []byte, d *Document) []byte {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0) // placeholder length
	for _, e := range d.Elements() {
		dst = appendElement(dst, e)
	}
	dst = append(dst, 0)
	binary.LittleEndian.PutUint32(dst[start:start+4], uint32(len(dst)-start))
	return dst
}

func appendElement(dst []byte, e Element) []byte {
	dst = append(dst, byte(e.Type))
	dst = append(dst, e.Name...)
	dst = append(dst, 0)

	switch e.Type {
	case TypeDouble:
		dst = appendFloat64(dst, e.Value.(float64))
	case TypeString, TypeCode, TypeSymbol:
		dst = appendCStringField(dst, e.Value.(string))
	case TypeDocument:
		dst = appendDocument(dst, e.Value.(*Document))
	case TypeArray:
		dst = appendDocument(dst, e.Value.(Array).asDocument())
	case TypeBinary:
		b := e.Value.(Binary)
		dst = appendInt32(dst, int32(len(b.Data)))
		dst = append(dst, b.Subtype)
		dst = append(dst, b.Data...)
	case TypeUndefined, TypeNull, TypeMinKey, TypeMaxKey:
		// no payload
	case TypeObjectID:
		id := e.Value.(ObjectID)
		dst = append(dst, id[:]...)
	case TypeBoolean:
		if e.Value.(bool) {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case TypeDateTime:
		dst = appendInt64(dst, e.Value.(time.Time).UnixMilli())
	case TypeRegex:
		r := e.Value.(Regex)
		dst = append(dst, r.Pattern...)
		dst = append(dst, 0)
		dst = append(dst, r.Options...)
		dst = append(dst, 0)
	case TypeDBPointer:
		p := e.Value.(DBPointer)
		dst = appendCStringField(dst, p.Namespace)
		dst = append(dst, p.ID[:]...)
	case TypeCodeWithScope:
		c := e.Value.(CodeWithScope)
		start := len(dst)
		dst = append(dst, 0, 0, 0, 0) // placeholder total length
		dst = appendCStringField(dst, c.Code)
		dst = appendDocument(dst, c.Scope)
		binary.LittleEndian.PutUint32(dst[start:start+4], uint32(len(dst)-start))
	case TypeInt32:
		dst = appendInt32(dst, e.Value.(int32))
	case TypeTimestamp:
		t := e.Value.(Timestamp)
		dst = appendInt32(dst, t.Increment)
		dst = appendInt32(dst, t.Time)
	case TypeInt64:
		dst = appendInt64(dst, e.Value.(int64))
	}
	return dst
}

func appendCStringField(dst []byte, s string) []byte {
	dst = appendInt32(dst, int32(len(s)+1))
	dst = append(dst, s...)
	dst = append(dst, 0)
	return dst
}

func appendInt32(dst []byte, v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(dst, b[:]...)
}

func appendFloat64(dst []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(dst, b[:]...)
}

// Decode parses a single document from the front of data. It returns the
// document and the number of bytes consumed.
func Decode(data []byte) (*Document, int, error) {
	if len(data) < 5 {
		return nil, 0, ErrTruncated
	}
	total := int(int32(binary.LittleEndian.Uint32(data[0:4])))
	if total < 5 || total > len(data) {
		return nil, 0, ErrTruncated
	}

	body := data[4 : total-1]
	if data[total-1] != 0 {
		return nil, 0, fmt.Errorf("docdb/doc: %w: missing trailing null", ErrTruncated)
	}

	var elements []Element
	for len(body) > 0 {
		e, n, err := decodeElement(body)
		if err != nil {
			return nil, 0, err
		}
		elements = append(elements, e)
		body = body[n:]
	}

	return &Document{elements: elements}, total, nil
}

func decodeElement(data []byte) (Element, int, error) {
	if len(data) < 2 {
		return Element{}, 0, ErrTruncated
	}
	t := Type(data[0])
	nameEnd := indexByte(data[1:], 0)
	if nameEnd < 0 {
		return Element{}, 0, ErrTruncated
	}
	name := string(data[1 : 1+nameEnd])
	if !utf8.ValidString(name) {
		return Element{}, 0, ErrInvalidUTF8
	}
	rest := data[1+nameEnd+1:]

	value, n, err := decodeValue(t, rest)
	if err != nil {
		return Element{}, 0, err
	}
	return Element{Name: name, Type: t, Value: value}, 1 + nameEnd + 1 + n, nil
}

func decodeValue(t Type, data []byte) (any, int, error) {
	switch t {
	case TypeDouble:
		v, n, err := readFloat64(data)
		return v, n, err
	case TypeString, TypeCode, TypeSymbol:
		return readCStringField(data)
	case TypeDocument:
		d, n, err := Decode(data)
		return d, n, err
	case TypeArray:
		d, n, err := Decode(data)
		if err != nil {
			return nil, 0, err
		}
		return Array(d.elements), n, nil
	case TypeBinary:
		return readBinary(data)
	case TypeUndefined:
		return Undefined, 0, nil
	case TypeObjectID:
		if len(data) < 12 {
			return nil, 0, ErrTruncated
		}
		var id ObjectID
		copy(id[:], data[:12])
		return id, 12, nil
	case TypeBoolean:
		if len(data) < 1 {
			return nil, 0, ErrTruncated
		}
		return data[0] != 0, 1, nil
	case TypeDateTime:
		v, n, err := readInt64(data)
		if err != nil {
			return nil, 0, err
		}
		return time.UnixMilli(v).UTC(), n, nil
	case TypeNull:
		return Null, 0, nil
	case TypeRegex:
		return readRegex(data)
	case TypeDBPointer:
		return readDBPointer(data)
	case TypeCodeWithScope:
		return readCodeWithScope(data)
	case TypeInt32:
		v, n, err := readInt32(data)
		return v, n, err
	case TypeTimestamp:
		if len(data) < 8 {
			return nil, 0, ErrTruncated
		}
		inc := int32(binary.LittleEndian.Uint32(data[0:4]))
		tm := int32(binary.LittleEndian.Uint32(data[4:8]))
		return Timestamp{Increment: inc, Time: tm}, 8, nil
	case TypeInt64:
		v, n, err := readInt64(data)
		return v, n, err
	case TypeMinKey:
		return MinKey, 0, nil
	case TypeMaxKey:
		return MaxKey, 0, nil
	default:
		return nil, 0, ErrUnknownType
	}
}

func readInt32(data []byte) (int32, int, error) {
	if len(data) < 4 {
		return 0, 0, ErrTruncated
	}
	return int32(binary.LittleEndian.Uint32(data[0:4])), 4, nil
}

func readInt64(data []byte) (int64, int, error) {
	if len(data) < 8 {
		return 0, 0, ErrTruncated
	}
	return int64(binary.LittleEndian.Uint64(data[0:8])), 8, nil
}

func readFloat64(data []byte) (float64, int, error) {
	if len(data) < 8 {
		return 0, 0, ErrTruncated
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data[0:8])), 8, nil
}

func readCStringField(data []byte) (string, int, error) {
	length, _, err := readInt32(data)
	if err != nil {
		return "", 0, err
	}
	total := int(length)
	if total < 1 || 4+total > len(data) {
		return "", 0, ErrTruncated
	}
	strBytes := data[4 : 4+total-1]
	if data[4+total-1] != 0 {
		return "", 0, ErrTruncated
	}
	if !utf8.Valid(strBytes) {
		return "", 0, ErrInvalidUTF8
	}
	return string(strBytes), 4 + total, nil
}

func readBinary(data []byte) (Binary, int, error) {
	length, _, err := readInt32(data)
	if err != nil {
		return Binary{}, 0, err
	}
	if length < 0 || 5+int(length) > len(data) {
		return Binary{}, 0, ErrTruncated
	}
	subtype := data[4]
	payload := append([]byte(nil), data[5:5+int(length)]...)
	return Binary{Subtype: subtype, Data: payload}, 5 + int(length), nil
}

func readRegex(data []byte) (Regex, int, error) {
	patEnd := indexByte(data, 0)
	if patEnd < 0 {
		return Regex{}, 0, ErrTruncated
	}
	rest := data[patEnd+1:]
	optEnd := indexByte(rest, 0)
	if optEnd < 0 {
		return Regex{}, 0, ErrTruncated
	}
	return Regex{Pattern: string(data[:patEnd]), Options: string(rest[:optEnd])}, patEnd + 1 + optEnd + 1, nil
}

func readDBPointer(data []byte) (DBPointer, int, error) {
	ns, n, err := readCStringField(data)
	if err != nil {
		return DBPointer{}, 0, err
	}
	rest := data[n:]
	if len(rest) < 12 {
		return DBPointer{}, 0, ErrTruncated
	}
	var id ObjectID
	copy(id[:], rest[:12])
	return DBPointer{Namespace: ns, ID: id}, n + 12, nil
}

func readCodeWithScope(data []byte) (CodeWithScope, int, error) {
	total, _, err := readInt32(data)
	if err != nil {
		return CodeWithScope{}, 0, err
	}
	if int(total) > len(data) {
		return CodeWithScope{}, 0, ErrTruncated
	}
	body := data[4:int(total)]
	code, n, err := readCStringField(body)
	if err != nil {
		return CodeWithScope{}, 0, err
	}
	scope, _, err := Decode(body[n:])
	if err != nil {
		return CodeWithScope{}, 0, err
	}
	return CodeWithScope{Code: code, Scope: scope}, int(total), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
