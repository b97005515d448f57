package planner

import "github.com/pior/docdb/doc"

// Durability is a write-concern descriptor: the caller's requested
// acknowledgement level for a write.
type Durability struct {
	w          any // int32 | string, or nil for "no w field"
	journal    bool
	fsync      bool
	wTimeoutMS int32
}

// NoAck is fire-and-forget: w:0.
func NoAck() Durability { return Durability{w: int32(0)} }

// Ack is single-server acknowledgement: w:1.
func Ack() Durability { return Durability{w: int32(1)} }

// JournalAck is w:1, j:true.
func JournalAck() Durability { return Durability{w: int32(1), journal: true} }

// Replicas requests acknowledgement from n replicas: w:n.
func Replicas(n int32) Durability { return Durability{w: n} }

// Majority requests w:"majority".
func Majority() Durability { return Durability{w: "majority"} }

// FSync requests w:1, fsync:true.
func FSync() Durability { return Durability{w: int32(1), fsync: true} }

// WithTimeout returns a copy of d with an additional wtimeout field.
func (d Durability) WithTimeout(ms int32) Durability {
	d.wTimeoutMS = ms
	return d
}

// Document renders d as the "writeConcern" sub-document, copying every
// field of the descriptor; there is no leading sentinel field to skip in
// this representation.
func (d Durability) Document() *doc.Document {
	var elements []doc.Element
	switch w := d.w.(type) {
	case int32:
		elements = append(elements, doc.NewInt32("w", w))
	case string:
		elements = append(elements, doc.NewString("w", w))
	}
	if d.journal {
		elements = append(elements, doc.NewBoolean("j", true))
	}
	if d.fsync {
		elements = append(elements, doc.NewBoolean("fsync", true))
	}
	if d.wTimeoutMS > 0 {
		elements = append(elements, doc.NewInt32("wtimeout", d.wTimeoutMS))
	}
	return doc.MustDocument(elements...)
}
