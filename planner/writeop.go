package planner

import "github.com/pior/docdb/doc"

// OpType is the tag of a WriteOperation variant.
type OpType int

const (
	OpInsert OpType = iota
	OpUpdate
	OpDelete
)

func (t OpType) String() string {
	switch t {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// WriteOperation is a tagged variant: insert(doc), update(query, update,
// multi, upsert), or delete(query, single).
type WriteOperation struct {
	Type OpType

	// Insert holds the document to insert. Only valid for OpInsert.
	Insert *doc.Document

	// Query is the selector for update/delete. Only valid for OpUpdate
	// and OpDelete.
	Query *doc.Document

	// Update is the update document. Only valid for OpUpdate.
	Update *doc.Document
	Multi  bool
	Upsert bool

	// Single, for OpDelete, maps to the wire "limit" field: true -> 1,
	// false -> 0 (unlimited).
	Single bool
}

func NewInsert(d *doc.Document) WriteOperation {
	return WriteOperation{Type: OpInsert, Insert: d}
}

func NewUpdate(query, update *doc.Document, multi, upsert bool) WriteOperation {
	return WriteOperation{Type: OpUpdate, Query: query, Update: update, Multi: multi, Upsert: upsert}
}

func NewDelete(query *doc.Document, single bool) WriteOperation {
	return WriteOperation{Type: OpDelete, Query: query, Single: single}
}

// payloadSize is the op's byte size before the array-index overhead that
// its position within a bundle's array contributes. Insert is simply the
// document's own size; update and delete use fixed overheads over the
// query/update sub-documents (q.size+u.size+29 and q.size+20
// respectively) approximating the server command's per-entry wrapper.
func (op WriteOperation) payloadSize() int {
	switch op.Type {
	case OpInsert:
		return op.Insert.Size()
	case OpUpdate:
		return op.Query.Size() + op.Update.Size() + 29
	case OpDelete:
		return op.Query.Size() + 20
	default:
		return 0
	}
}

// indexOverhead is the cost of encoding the element name "0", "1", ...
// at a given array position.
func indexOverhead(index int) int {
	switch {
	case index < 10:
		return 3
	case index < 100:
		return 4
	case index < 1000:
		return 5
	case index < 10000:
		return 6
	default:
		return len(itoa(index)) + 2
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b [20]byte
	pos := len(b)
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}

// sizeAt returns op's total contribution to a bundle's array at the
// given within-bundle position.
func (op WriteOperation) sizeAt(index int) int {
	return indexOverhead(index) + op.payloadSize()
}

// toElement renders op as the array-entry document per its per-op wire
// shape: insert -> the document, with an "_id" injected if it has none;
// update -> {q,u,upsert,multi};
// delete -> {q, limit}.
func (op WriteOperation) toElement(name string) doc.Element {
	switch op.Type {
	case OpInsert:
		return doc.NewDocumentElement(name, op.Insert.WithID())
	case OpUpdate:
		body := doc.MustDocument(
			doc.NewDocumentElement("q", op.Query),
			doc.NewDocumentElement("u", op.Update),
			doc.NewBoolean("upsert", op.Upsert),
			doc.NewBoolean("multi", op.Multi),
		)
		return doc.NewDocumentElement(name, body)
	case OpDelete:
		limit := int32(0)
		if op.Single {
			limit = 1
		}
		body := doc.MustDocument(
			doc.NewDocumentElement("q", op.Query),
			doc.NewInt32("limit", limit),
		)
		return doc.NewDocumentElement(name, body)
	default:
		return doc.Element{}
	}
}

// arrayFieldName is the bundle command field carrying this op type's
// entries: "documents" for insert, "updates" for update, "deletes" for
// delete.
func (t OpType) arrayFieldName() string {
	switch t {
	case OpInsert:
		return "documents"
	case OpUpdate:
		return "updates"
	case OpDelete:
		return "deletes"
	default:
		return ""
	}
}

// commandFieldName is the command verb naming the target collection:
// "insert", "update", or "delete".
func (t OpType) commandFieldName() string {
	return t.String()
}
