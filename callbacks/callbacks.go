// Package callbacks adapts a raw wire reply into a domain-shaped result
// or a typed failure, so that callers of the client never decode a
// *wire.Reply by hand.
//
// Each adapter here returns a plain func(*wire.Reply, error), matching
// the connection pool's reply-callback signature structurally rather
// than by name, so this package stays free of an import cycle with the
// client that wires these adapters in.
package callbacks

import (
	"fmt"

	"github.com/pior/docdb/doc"
	"github.com/pior/docdb/wire"
)

// ServerError reports a failure the server itself reported: ok=0 on the
// command document, or the queryFailed reply flag.
type ServerError struct {
	Code    int32
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
	}
	return "server error: " + e.Message
}

// ShapeError reports a reply that does not have the shape an adapter
// requires, e.g. a single-document adapter seeing zero or multiple
// documents.
type ShapeError struct {
	Message string
}

func (e *ShapeError) Error() string { return "reply shape: " + e.Message }

func shapeErrorf(format string, args ...any) *ShapeError {
	return &ShapeError{Message: fmt.Sprintf(format, args...)}
}

// serverFailure inspects reply for a server-reported failure: the
// queryFailed flag, or the first document's ok field set to anything
// other than a truthy 1. It returns nil if reply looks successful.
func serverFailure(reply *wire.Reply) error {
	if reply.QueryFailed() {
		return serverErrorFromDocument(firstDocument(reply))
	}
	first := firstDocument(reply)
	if first == nil {
		return nil
	}
	okEl, found := first.Get("ok")
	if !found {
		return nil
	}
	if truthy(okEl) {
		return nil
	}
	return serverErrorFromDocument(first)
}

func serverErrorFromDocument(d *doc.Document) *ServerError {
	se := &ServerError{Message: "command failed"}
	if d == nil {
		return se
	}
	if el, ok := d.Get("errmsg"); ok {
		if s, ok := el.Value.(string); ok {
			se.Message = s
		}
	} else if el, ok := d.Get("$err"); ok {
		if s, ok := el.Value.(string); ok {
			se.Message = s
		}
	}
	if el, ok := d.Get("code"); ok {
		se.Code = toInt32(el)
	}
	return se
}

func firstDocument(reply *wire.Reply) *doc.Document {
	if len(reply.Documents) == 0 {
		return nil
	}
	return reply.Documents[0]
}

func truthy(e doc.Element) bool {
	switch v := e.Value.(type) {
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case bool:
		return v
	default:
		return false
	}
}

func toInt32(e doc.Element) int32 {
	switch v := e.Value.(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case float64:
		return int32(v)
	default:
		return 0
	}
}

func toInt64(e doc.Element) int64 {
	switch v := e.Value.(type) {
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Document adapts a reply expected to carry exactly one document.
func Document(cb func(*doc.Document, error)) func(*wire.Reply, error) {
	return func(reply *wire.Reply, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		if len(reply.Documents) != 1 {
			cb(nil, shapeErrorf("expected exactly one document, got %d", len(reply.Documents)))
			return
		}
		if sErr := serverFailure(reply); sErr != nil {
			cb(nil, sErr)
			return
		}
		cb(reply.Documents[0], nil)
	}
}

// Array adapts a reply's sole document by extracting its named array
// field (default name "values" when name is empty).
func Array(name string, cb func(doc.Array, error)) func(*wire.Reply, error) {
	if name == "" {
		name = "values"
	}
	return func(reply *wire.Reply, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		if sErr := serverFailure(reply); sErr != nil {
			cb(nil, sErr)
			return
		}
		d := firstDocument(reply)
		if d == nil {
			cb(nil, shapeErrorf("expected a document carrying field %q, got none", name))
			return
		}
		el, ok := d.Get(name)
		if !ok {
			cb(nil, shapeErrorf("field %q not present in reply document", name))
			return
		}
		arr, ok := el.Value.(doc.Array)
		if !ok {
			cb(nil, shapeErrorf("field %q is not an array", name))
			return
		}
		cb(arr, nil)
	}
}

// Cursor adapts a get-more-eligible reply by extracting its batch of
// documents and its cursor id (0 once exhausted).
func Cursor(cb func(batch []*doc.Document, cursorID int64, err error)) func(*wire.Reply, error) {
	return func(reply *wire.Reply, err error) {
		if err != nil {
			cb(nil, 0, err)
			return
		}
		if reply.CursorNotFound() {
			cb(nil, 0, shapeErrorf("cursor not found"))
			return
		}
		if sErr := serverFailure(reply); sErr != nil {
			cb(nil, 0, sErr)
			return
		}
		cb(reply.Documents, reply.CursorID, nil)
	}
}

// Counter adapts a reply's sole document by extracting a named numeric
// field (commonly "n") as an int64.
func Counter(name string, cb func(int64, error)) func(*wire.Reply, error) {
	return func(reply *wire.Reply, err error) {
		if err != nil {
			cb(0, err)
			return
		}
		if sErr := serverFailure(reply); sErr != nil {
			cb(0, sErr)
			return
		}
		d := firstDocument(reply)
		if d == nil {
			cb(0, shapeErrorf("expected a document carrying field %q, got none", name))
			return
		}
		el, ok := d.Get(name)
		if !ok {
			cb(0, shapeErrorf("field %q not present in reply document", name))
			return
		}
		cb(toInt64(el), nil)
	}
}

// Ack adapts a reply's sole document by extracting its "ok" flag as a
// boolean success indicator, without treating ok=0 as an error - callers
// that only want to know whether the command round-tripped, regardless
// of outcome, use this instead of Document.
func Ack(cb func(bool, error)) func(*wire.Reply, error) {
	return func(reply *wire.Reply, err error) {
		if err != nil {
			cb(false, err)
			return
		}
		d := firstDocument(reply)
		if d == nil {
			cb(false, shapeErrorf("expected a document carrying field %q, got none", "ok"))
			return
		}
		el, ok := d.Get("ok")
		if !ok {
			cb(false, shapeErrorf("field %q not present in reply document", "ok"))
			return
		}
		cb(truthy(el), nil)
	}
}
