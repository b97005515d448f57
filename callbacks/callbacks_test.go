package callbacks

import (
	"testing"

	"github.com/pior/docdb/doc"
	"github.com/pior/docdb/wire"
	"github.com/stretchr/testify/require"
)

func replyOf(docs ...*doc.Document) *wire.Reply {
	return &wire.Reply{Documents: docs}
}

func TestDocumentExtractsSoleDocument(t *testing.T) {
	d := doc.MustDocument(doc.NewInt32("ok", 1), doc.NewString("name", "widget"))

	var got *doc.Document
	var gotErr error
	Document(func(d *doc.Document, err error) { got, gotErr = d, err })(replyOf(d), nil)

	require.NoError(t, gotErr)
	require.True(t, got.Equal(d))
}

func TestDocumentFailsShapeOnZeroDocuments(t *testing.T) {
	var gotErr error
	Document(func(_ *doc.Document, err error) { gotErr = err })(replyOf(), nil)

	require.Error(t, gotErr)
	require.IsType(t, &ShapeError{}, gotErr)
}

func TestDocumentFailsShapeOnMultipleDocuments(t *testing.T) {
	d := doc.MustDocument(doc.NewInt32("ok", 1))

	var gotErr error
	Document(func(_ *doc.Document, err error) { gotErr = err })(replyOf(d, d), nil)

	require.Error(t, gotErr)
	require.IsType(t, &ShapeError{}, gotErr)
}

func TestDocumentSynthesizesServerErrorFromOkZero(t *testing.T) {
	d := doc.MustDocument(
		doc.NewInt32("ok", 0),
		doc.NewString("errmsg", "not authorized"),
		doc.NewInt32("code", 13),
	)

	var gotErr error
	Document(func(_ *doc.Document, err error) { gotErr = err })(replyOf(d), nil)

	require.Error(t, gotErr)
	var serverErr *ServerError
	require.ErrorAs(t, gotErr, &serverErr)
	require.Equal(t, int32(13), serverErr.Code)
	require.Equal(t, "not authorized", serverErr.Message)
}

func TestDocumentPropagatesTransportError(t *testing.T) {
	sentinel := &ShapeError{Message: "socket closed"}

	var gotErr error
	Document(func(_ *doc.Document, err error) { gotErr = err })(nil, sentinel)

	require.ErrorIs(t, gotErr, sentinel)
}

func TestArrayExtractsNamedField(t *testing.T) {
	values := doc.NewArrayOf(doc.NewString("a", "x"), doc.NewString("b", "y"))
	d := doc.MustDocument(doc.NewInt32("ok", 1), doc.NewArray("values", values))

	var got doc.Array
	var gotErr error
	Array("", func(a doc.Array, err error) { got, gotErr = a, err })(replyOf(d), nil)

	require.NoError(t, gotErr)
	require.True(t, got.Equal(values))
}

func TestArrayDefaultsNameToValues(t *testing.T) {
	values := doc.NewArrayOf(doc.NewInt32("0", 1))
	d := doc.MustDocument(doc.NewArray("values", values))

	var gotErr error
	Array("", func(_ doc.Array, err error) { gotErr = err })(replyOf(d), nil)

	require.NoError(t, gotErr)
}

func TestArrayFailsShapeWhenFieldMissing(t *testing.T) {
	d := doc.MustDocument(doc.NewInt32("ok", 1))

	var gotErr error
	Array("missing", func(_ doc.Array, err error) { gotErr = err })(replyOf(d), nil)

	require.Error(t, gotErr)
	require.IsType(t, &ShapeError{}, gotErr)
}

func TestCursorExtractsBatchAndID(t *testing.T) {
	d1 := doc.MustDocument(doc.NewInt32("n", 1))
	d2 := doc.MustDocument(doc.NewInt32("n", 2))
	reply := &wire.Reply{Documents: []*doc.Document{d1, d2}, CursorID: 42}

	var gotBatch []*doc.Document
	var gotID int64
	var gotErr error
	Cursor(func(batch []*doc.Document, id int64, err error) {
		gotBatch, gotID, gotErr = batch, id, err
	})(reply, nil)

	require.NoError(t, gotErr)
	require.Len(t, gotBatch, 2)
	require.EqualValues(t, 42, gotID)
}

func TestCursorFailsOnCursorNotFoundFlag(t *testing.T) {
	reply := &wire.Reply{Flags: wire.ReplyFlagCursorNotFound}

	var gotErr error
	Cursor(func(_ []*doc.Document, _ int64, err error) { gotErr = err })(reply, nil)

	require.Error(t, gotErr)
}

func TestCounterExtractsNamedNumericField(t *testing.T) {
	d := doc.MustDocument(doc.NewInt32("ok", 1), doc.NewInt32("n", 7))

	var got int64
	var gotErr error
	Counter("n", func(n int64, err error) { got, gotErr = n, err })(replyOf(d), nil)

	require.NoError(t, gotErr)
	require.EqualValues(t, 7, got)
}

func TestAckExtractsOkAsBooleanWithoutFailingOnZero(t *testing.T) {
	d := doc.MustDocument(doc.NewInt32("ok", 0))

	var got bool
	var gotErr error
	Ack(func(ok bool, err error) { got, gotErr = ok, err })(replyOf(d), nil)

	require.NoError(t, gotErr)
	require.False(t, got)
}

func TestQueryFailedFlagSynthesizesServerError(t *testing.T) {
	d := doc.MustDocument(doc.NewString("$err", "not master"), doc.NewInt32("code", 10107))
	reply := &wire.Reply{Flags: wire.ReplyFlagQueryFailure, Documents: []*doc.Document{d}}

	var gotErr error
	Document(func(_ *doc.Document, err error) { gotErr = err })(reply, nil)

	require.Error(t, gotErr)
	var serverErr *ServerError
	require.ErrorAs(t, gotErr, &serverErr)
	require.Equal(t, "not master", serverErr.Message)
}
