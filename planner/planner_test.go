package planner

import (
	"strings"
	"testing"

	"github.com/pior/docdb/doc"
	"github.com/stretchr/testify/require"
)

func insertOfSize(t *testing.T, payloadBytes int) WriteOperation {
	t.Helper()
	padding := strings.Repeat("x", payloadBytes)
	d := doc.MustDocument(doc.NewString("padding", padding))
	return NewInsert(d)
}

func TestPlanSerializeAndContinuePacksOneBundleUnderLimits(t *testing.T) {
	ops := make([]WriteOperation, 0, 600)
	for i := 0; i < 600; i++ {
		ops = append(ops, insertOfSize(t, 170))
	}

	bundles, err := Plan(ops, "widgets", 16*1024*1024, 1000, Ack(), SerializeAndContinue)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Len(t, bundles[0].Ops, 600)

	ordered, ok := bundles[0].Command.Get("ordered")
	require.True(t, ok)
	require.Equal(t, false, ordered.Value)
}

func TestPlanSerializeAndContinueSplitsOnOperationCountLimit(t *testing.T) {
	ops := make([]WriteOperation, 0, 2500)
	for i := 0; i < 2500; i++ {
		ops = append(ops, insertOfSize(t, 32))
	}

	bundles, err := Plan(ops, "widgets", 16*1024*1024, 1000, Ack(), SerializeAndContinue)
	require.NoError(t, err)
	require.Len(t, bundles, 3)
	require.Len(t, bundles[0].Ops, 1000)
	require.Len(t, bundles[1].Ops, 1000)
	require.Len(t, bundles[2].Ops, 500)
}

func TestPlanSplitsOnCommandSizeLimit(t *testing.T) {
	ops := make([]WriteOperation, 0, 10)
	for i := 0; i < 10; i++ {
		ops = append(ops, insertOfSize(t, 2*1024*1024))
	}

	bundles, err := Plan(ops, "widgets", 16*1024*1024, 1000, Ack(), SerializeAndContinue)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	total := 0
	for _, b := range bundles {
		require.LessOrEqual(t, b.Command.Size(), 16*1024*1024)
		total += len(b.Ops)
	}
	require.Equal(t, 10, total)
}

func TestPlanRejectsOversizeSingleDocument(t *testing.T) {
	oversized := insertOfSize(t, 20*1024*1024)

	_, err := Plan([]WriteOperation{oversized}, "widgets", 16*1024*1024, 1000, Ack(), SerializeAndContinue)
	require.Error(t, err)

	var tooLargeErr *TooLargeError
	require.ErrorAs(t, err, &tooLargeErr)
	require.Same(t, oversized.Insert, tooLargeErr.Document)
	require.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestPlanSerializeAndStopOmitsOrderedField(t *testing.T) {
	ops := []WriteOperation{insertOfSize(t, 10), insertOfSize(t, 10)}

	bundles, err := Plan(ops, "widgets", 16*1024*1024, 1000, Ack(), SerializeAndStop)
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	_, ok := bundles[0].Command.Get("ordered")
	require.False(t, ok)
}

func TestPlanReorderedGroupsByTypeAndEmitsOrderedFalse(t *testing.T) {
	insert := insertOfSize(t, 10)
	update := NewUpdate(doc.MustDocument(doc.NewString("k", "v")), doc.MustDocument(doc.NewString("k", "w")), false, false)
	del := NewDelete(doc.MustDocument(doc.NewString("k", "v")), true)

	ops := []WriteOperation{del, insert, update}

	bundles, err := Plan(ops, "widgets", 16*1024*1024, 1000, Ack(), Reordered)
	require.NoError(t, err)
	require.Len(t, bundles, 3)

	verbs := make([]string, len(bundles))
	for i, b := range bundles {
		ordered, ok := b.Command.Get("ordered")
		require.True(t, ok)
		require.Equal(t, false, ordered.Value)

		v, ok := b.Command.Get("insert")
		if ok {
			verbs[i] = v.Value.(string)
			continue
		}
		v, ok = b.Command.Get("update")
		if ok {
			verbs[i] = v.Value.(string)
			continue
		}
		v, _ = b.Command.Get("delete")
		verbs[i] = v.Value.(string)
	}
	require.Equal(t, []string{"widgets", "widgets", "widgets"}, verbs)
}

func TestPlanReorderedPacksLargestOperationsFirstWithinBucket(t *testing.T) {
	big := insertOfSize(t, 9*1024*1024)
	small := insertOfSize(t, 1024)

	bundles, err := Plan([]WriteOperation{small, big}, "widgets", 10*1024*1024, 1000, Ack(), Reordered)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Len(t, bundles[0].Ops, 2)
	require.Same(t, big.Insert, bundles[0].Ops[0].Insert)
}

func TestPlanEmptyInputProducesNoBundles(t *testing.T) {
	bundles, err := Plan(nil, "widgets", 16*1024*1024, 1000, Ack(), SerializeAndContinue)
	require.NoError(t, err)
	require.Empty(t, bundles)
}
