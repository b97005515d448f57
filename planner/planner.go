package planner

import (
	"sort"

	"github.com/pior/docdb/doc"
)

// Mode selects one of the three ways a batch of operations can be packed
// into bundles.
type Mode int

const (
	// Reordered buckets operations by type, then within each bucket
	// greedily packs the largest operations that still fit the
	// remaining budget first. Always emits ordered:false.
	Reordered Mode = iota

	// SerializeAndContinue walks operations in submission order,
	// closing a bundle whenever the type changes, the size budget
	// would be exceeded, or the operation-count limit is reached.
	// Always emits ordered:false, since a server given ordered:false
	// keeps executing later operations in a bundle after one fails.
	SerializeAndContinue

	// SerializeAndStop is identical to SerializeAndContinue's packing,
	// but omits the "ordered" field entirely, relying on the server's
	// default of true: once one operation in a bundle fails, the
	// server stops executing the rest of that bundle.
	SerializeAndStop
)

// Plan packs ops into bundles, each no larger than maxCommandSize bytes and
// holding at most maxOpsPerBundle operations, under the given mode. It
// returns a *TooLargeError (wrapping ErrDocumentTooLarge) naming the first
// operation that cannot fit in a bundle by itself.
func Plan(ops []WriteOperation, collection string, maxCommandSize, maxOpsPerBundle int, durability Durability, mode Mode) ([]Bundle, error) {
	switch mode {
	case Reordered:
		return planReordered(ops, collection, maxCommandSize, maxOpsPerBundle, durability)
	case SerializeAndStop:
		return planSerialized(ops, collection, maxCommandSize, maxOpsPerBundle, durability, nil)
	default:
		ordered := false
		return planSerialized(ops, collection, maxCommandSize, maxOpsPerBundle, durability, &ordered)
	}
}

// validateSingleton rejects an operation that cannot fit into a bundle on
// its own, since no amount of repacking would ever place it.
func validateSingleton(op WriteOperation, collection string, ordered *bool, durability Durability, maxCommandSize int) error {
	solo := buildCommand(op.Type, collection, []WriteOperation{op}, ordered, durability)
	if size := solo.Size(); size > maxCommandSize {
		return tooLarge(soloDocument(op), size, maxCommandSize)
	}
	return nil
}

// soloDocument names the document a TooLargeError should point at: the
// document itself for an insert, the query selector otherwise.
func soloDocument(op WriteOperation) *doc.Document {
	if op.Type == OpInsert {
		return op.Insert
	}
	return op.Query
}

func planSerialized(ops []WriteOperation, collection string, maxCommandSize, maxOpsPerBundle int, durability Durability, ordered *bool) ([]Bundle, error) {
	var bundles []Bundle
	var current []WriteOperation
	var currentType OpType
	hasCurrent := false

	flush := func() {
		if len(current) == 0 {
			return
		}
		bundles = append(bundles, Bundle{
			Command: buildCommand(currentType, collection, current, ordered, durability),
			Ops:     current,
		})
		current = nil
	}

	for _, op := range ops {
		if err := validateSingleton(op, collection, ordered, durability, maxCommandSize); err != nil {
			return nil, err
		}

		if hasCurrent && op.Type == currentType && len(current) < maxOpsPerBundle {
			tentative := append(append([]WriteOperation{}, current...), op)
			if buildCommand(currentType, collection, tentative, ordered, durability).Size() <= maxCommandSize {
				current = tentative
				continue
			}
		}

		flush()
		current = []WriteOperation{op}
		currentType = op.Type
		hasCurrent = true
	}
	flush()

	return bundles, nil
}

// opTypeOrder fixes the emission order of buckets in reordered mode:
// inserts, then updates, then deletes.
var opTypeOrder = [...]OpType{OpInsert, OpUpdate, OpDelete}

func planReordered(ops []WriteOperation, collection string, maxCommandSize, maxOpsPerBundle int, durability Durability) ([]Bundle, error) {
	ordered := false

	buckets := make(map[OpType][]WriteOperation, 3)
	for _, op := range ops {
		if err := validateSingleton(op, collection, &ordered, durability, maxCommandSize); err != nil {
			return nil, err
		}
		buckets[op.Type] = append(buckets[op.Type], op)
	}

	var bundles []Bundle
	for _, t := range opTypeOrder {
		remaining := buckets[t]
		if len(remaining) == 0 {
			continue
		}
		sort.SliceStable(remaining, func(i, j int) bool {
			return remaining[i].payloadSize() > remaining[j].payloadSize()
		})

		for len(remaining) > 0 {
			chosen, leftover := packOne(remaining, t, collection, &ordered, durability, maxCommandSize, maxOpsPerBundle)
			bundles = append(bundles, Bundle{
				Command: buildCommand(t, collection, chosen, &ordered, durability),
				Ops:     chosen,
			})
			remaining = leftover
		}
	}
	return bundles, nil
}

// packOne greedily fills one bundle from remaining, which is sorted by
// descending payload size: it scans in order, taking every operation that
// still fits the size and count budgets, and returns the rest (still in
// descending order) for the next bundle.
func packOne(remaining []WriteOperation, t OpType, collection string, ordered *bool, durability Durability, maxCommandSize, maxOpsPerBundle int) (chosen, leftover []WriteOperation) {
	for _, op := range remaining {
		if len(chosen) >= maxOpsPerBundle {
			leftover = append(leftover, op)
			continue
		}
		tentative := append(append([]WriteOperation{}, chosen...), op)
		if buildCommand(t, collection, tentative, ordered, durability).Size() <= maxCommandSize {
			chosen = tentative
		} else {
			leftover = append(leftover, op)
		}
	}
	return chosen, leftover
}
