package planner

import "github.com/pior/docdb/doc"

// Bundle is one server command worth of batched operations: the ready-to-send
// command document and the operations it carries, in wire order.
type Bundle struct {
	Command *doc.Document
	Ops     []WriteOperation
}

// buildCommand renders a bundle's command document for a single operation
// type: the verb field naming the collection, an optional explicit
// "ordered" field, the write concern, and the array of per-op entries.
//
// ordered == nil omits the field entirely, relying on the server's default
// (true). A non-nil value is always written explicitly, which in practice
// is only ever used to write false.
func buildCommand(opType OpType, collection string, ops []WriteOperation, ordered *bool, durability Durability) *doc.Document {
	elements := []doc.Element{
		doc.NewString(opType.commandFieldName(), collection),
	}
	if ordered != nil {
		elements = append(elements, doc.NewBoolean("ordered", *ordered))
	}
	elements = append(elements, doc.NewDocumentElement("writeConcern", durability.Document()))

	entries := make(doc.Array, len(ops))
	for i, op := range ops {
		entries[i] = op.toElement(itoa(i))
	}
	elements = append(elements, doc.NewArray(opType.arrayFieldName(), entries))

	return doc.MustDocument(elements...)
}
