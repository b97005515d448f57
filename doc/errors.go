package doc

import "errors"

// ErrInvalidName is returned when an element name contains an interior
// null byte, which would corrupt the CString framing on the wire.
var ErrInvalidName = errors.New("docdb/doc: element name contains a null byte")

// ErrInvalidUTF8 is returned by Decode when a string, code, or symbol
// value is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("docdb/doc: invalid UTF-8 in decoded value")

// ErrTruncated is returned by Decode when the input ends before a
// complete document could be read.
var ErrTruncated = errors.New("docdb/doc: truncated document")

// ErrUnknownType is returned by Decode when an element's type tag is
// outside the closed set this package knows how to interpret.
var ErrUnknownType = errors.New("docdb/doc: unknown element type tag")

// ErrDuplicateName is returned by NewDocument when two elements share a
// name; a Document's elements must have distinct names.
var ErrDuplicateName = errors.New("docdb/doc: duplicate element name")
