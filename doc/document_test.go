package doc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	cases := []*Document{
		Empty(),
		MustDocument(NewString("name", "alice"), NewInt32("age", 30)),
		MustDocument(
			NewDouble("pi", 3.14159),
			NewBoolean("active", true),
			NewNull("gone"),
			NewObjectIDElement("_id", NewObjectID()),
			NewArray("tags", NewArrayOf(NewString("", "a"), NewString("", "b"))),
			NewDocumentElement("nested", MustDocument(NewInt64("big", 1<<40))),
			NewBinary("blob", 0x00, []byte{1, 2, 3}),
			NewDateTime("ts", time.Now()),
			NewRegex("re", "^a.*z$", "i"),
			NewTimestamp("optime", Timestamp{Increment: 1, Time: 100}),
			NewMinKey("lo"),
			NewMaxKey("hi"),
		),
	}

	for _, d := range cases {
		encoded := d.Encode()
		require.Equal(t, d.Size(), len(encoded))

		decoded, n, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), n)
		require.True(t, d.Equal(decoded))
	}
}

func TestEmptyDocumentWithIDEncodesTo22Bytes(t *testing.T) {
	empty := Empty()
	withID := empty.WithID()

	require.Equal(t, 22, withID.Size())

	encoded := withID.Encode()
	require.Len(t, encoded, 22)

	decoded, n, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, 22, n)
	require.True(t, withID.Equal(decoded))
}

func TestDocumentWithIDIsIdempotent(t *testing.T) {
	d := MustDocument(NewString("name", "bob"))
	once := d.WithID()
	twice := once.WithID()
	require.True(t, once.Equal(twice))
}

func TestDocumentGetIsIndexed(t *testing.T) {
	d := MustDocument(NewString("a", "1"), NewString("b", "2"))
	v, ok := d.Get("b")
	require.True(t, ok)
	require.Equal(t, "2", v.Value)

	_, ok = d.Get("missing")
	require.False(t, ok)
}

func TestDocumentAppendRejectsDuplicateName(t *testing.T) {
	d := MustDocument(NewString("a", "1"))
	_, err := d.Append(NewString("a", "2"))
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestElementNameWithNullByteIsRejected(t *testing.T) {
	e := NewString("bad\x00name", "value")
	require.ErrorIs(t, e.validateName(), ErrInvalidName)
}

func TestPathQuery(t *testing.T) {
	d := MustDocument(
		NewDocumentElement("a", MustDocument(
			NewDocumentElement("b", MustDocument(NewInt32("c", 1))),
		)),
	)
	found := d.Path(Literal("a"), Literal("b"), Literal("c"))
	require.Len(t, found, 1)
	require.Equal(t, int32(1), found[0].Value)
}

func TestElementCrossNumericEquality(t *testing.T) {
	a := NewInt32("x", 5)
	b := NewDouble("x", 5.0)
	c := NewInt64("x", 5)
	require.True(t, a.Equal(b))
	require.True(t, b.Equal(c))
}
