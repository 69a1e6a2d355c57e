package fieldpath

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tranvictor/clearsign/decode"
)

func intp(v int) *int { return &v }

// sampleTree mirrors a decoded swap call:
//
//	{params: {tokenIn, path (43 bytes), amounts [10,20,30]}, deadline}
func sampleTree() *decode.Node {
	pathBytes := make([]byte, 43)
	for i := 23; i < 43; i++ {
		pathBytes[i] = 0xaa
	}
	return decode.NewTuple(
		[]string{"params", "deadline"},
		[]*decode.Node{
			decode.NewTuple(
				[]string{"tokenIn", "path", "amounts"},
				[]*decode.Node{
					decode.NewScalar("0x1111111111111111111111111111111111111111"),
					decode.NewBytes(pathBytes),
					decode.NewSeq([]*decode.Node{
						decode.NewNumber(big.NewInt(10)),
						decode.NewNumber(big.NewInt(20)),
						decode.NewNumber(big.NewInt(30)),
					}),
				},
			),
			decode.NewNumber(big.NewInt(9999)),
		},
	)
}

func sampleTx() *decode.TxContext {
	return &decode.TxContext{
		Hash:  "0xabc",
		From:  "0x2222222222222222222222222222222222222222",
		To:    "0x3333333333333333333333333333333333333333",
		Value: big.NewInt(1500000000000000000),
	}
}

func TestParseSegments(t *testing.T) {
	p, err := Parse("params.amounts[0]")
	require.Nil(t, err)
	require.Equal(t, []Segment{
		{Kind: Field, Name: "params"},
		{Kind: Field, Name: "amounts"},
		{Kind: Index, Idx: 0},
	}, p.Segments)

	// bracket groups may stand as their own dotted segment
	p, err = Parse("params.path.[-20:]")
	require.Nil(t, err)
	require.Equal(t, []Segment{
		{Kind: Field, Name: "params"},
		{Kind: Field, Name: "path"},
		{Kind: Slice, Start: intp(-20)},
	}, p.Segments)

	// a leading root marker is accepted and dropped
	p, err = Parse("#.params.tokenIn")
	require.Nil(t, err)
	root, ok := p.RootField()
	require.True(t, ok)
	require.Equal(t, "params", root)

	p, err = Parse("path[4:24]")
	require.Nil(t, err)
	require.Equal(t, []Segment{
		{Kind: Field, Name: "path"},
		{Kind: Slice, Start: intp(4), End: intp(24)},
	}, p.Segments)
}

func TestParseContainers(t *testing.T) {
	for _, name := range []string{"to", "from", "value"} {
		p, err := Parse("@." + name)
		require.Nil(t, err)
		require.True(t, p.IsContainer())
		require.Equal(t, name, p.ContainerName())
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"@",
		"@.gas",
		"@.to.something",
		"params..amounts",
		"params.amounts[",
		"params.amounts[x]",
		"params.amounts[1:2:3]x",
		"9lives",
		"par ams",
	} {
		_, err := Parse(raw)
		require.NotNil(t, err, raw)
		require.Equal(t, MalformedPath, err.Reason, raw)
	}
}

func TestResolveContainerPaths(t *testing.T) {
	tx := sampleTx()
	tree := sampleTree()

	v, err := ResolveExpr("@.to", tree, tx)
	require.Nil(t, err)
	require.Equal(t, tx.To, v.Str)

	v, err = ResolveExpr("@.from", tree, tx)
	require.Nil(t, err)
	require.Equal(t, tx.From, v.Str)

	v, err = ResolveExpr("@.value", tree, tx)
	require.Nil(t, err)
	require.Zero(t, v.Big.Cmp(tx.Value))
}

func TestResolveFieldChain(t *testing.T) {
	v, err := ResolveExpr("params.tokenIn", sampleTree(), sampleTx())
	require.Nil(t, err)
	require.Equal(t, "0x1111111111111111111111111111111111111111", v.Str)

	v, err = ResolveExpr("deadline", sampleTree(), sampleTx())
	require.Nil(t, err)
	require.Equal(t, "9999", v.Str)
}

func TestResolveIsDeterministic(t *testing.T) {
	tree := sampleTree()
	tx := sampleTx()
	for _, raw := range []string{"params.amounts[1]", "params.path.[-20:]", "@.value", "params.missing"} {
		a, errA := ResolveExpr(raw, tree, tx)
		b, errB := ResolveExpr(raw, tree, tx)
		if errA != nil {
			require.NotNil(t, errB)
			require.Equal(t, errA.Reason, errB.Reason)
			continue
		}
		require.Nil(t, errB)
		require.Equal(t, a.Display(), b.Display())
	}
}

func TestNegativeIndexEqualsLengthMinusOne(t *testing.T) {
	tree := sampleTree()
	tx := sampleTx()

	last, err := ResolveExpr("params.amounts[-1]", tree, tx)
	require.Nil(t, err)
	explicit, err := ResolveExpr("params.amounts[2]", tree, tx)
	require.Nil(t, err)
	require.Equal(t, explicit.Str, last.Str)
}

func TestSliceOneToMinusOne(t *testing.T) {
	// [1:-1] on [10,20,30] keeps exactly the middle element
	p, err := Parse("params.amounts[1:-1]")
	require.Nil(t, err)

	cur := sampleTree()
	member, ok := cur.Field("params")
	require.True(t, ok)
	amounts, ok := member.Field("amounts")
	require.True(t, ok)

	sliced, serr := stepSlice(p.Raw, amounts, p.Segments[2])
	require.Nil(t, serr)
	require.Equal(t, 1, sliced.Len())
	require.Equal(t, "20", sliced.Elems[0].Str)
}

func TestByteSlicePrefixAndSuffixDisjoint(t *testing.T) {
	// on a 43 byte string, [0:20] and [-20:] never overlap
	tree := sampleTree()
	tx := sampleTx()

	head, err := ResolveExpr("params.path[0:20]", tree, tx)
	require.Nil(t, err)
	tail, err := ResolveExpr("params.path[-20:]", tree, tx)
	require.Nil(t, err)
	require.Len(t, head.Raw, 20)
	require.Len(t, tail.Raw, 20)
	require.False(t, bytes.Equal(head.Raw, tail.Raw))
}

func TestByteSuffixSliceExtractsPackedAddress(t *testing.T) {
	want := bytes.Repeat([]byte{0xaa}, 20)

	v, err := ResolveExpr("params.path.[-20:]", sampleTree(), sampleTx())
	require.Nil(t, err)
	require.Equal(t, decode.Bytes, v.Kind)
	require.Equal(t, want, v.Raw)
	require.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", v.Display())
}

func TestIndexOutOfBounds(t *testing.T) {
	tree := sampleTree()
	tx := sampleTx()

	// length is 3: index 3 and -4 both fall outside
	for _, raw := range []string{"params.amounts[3]", "params.amounts[-4]"} {
		_, err := ResolveExpr(raw, tree, tx)
		require.NotNil(t, err, raw)
		require.Equal(t, OutOfBounds, err.Reason, raw)
	}

	// boundary indices are fine
	for _, raw := range []string{"params.amounts[0]", "params.amounts[-3]"} {
		_, err := ResolveExpr(raw, tree, tx)
		require.Nil(t, err, raw)
	}
}

func TestSliceOutOfBounds(t *testing.T) {
	tree := sampleTree()
	tx := sampleTx()

	for _, raw := range []string{
		"params.amounts[0:4]",
		"params.amounts[-5:]",
		"params.amounts[2:1]", // reversed after normalization
		"params.path[0:44]",
	} {
		_, err := ResolveExpr(raw, tree, tx)
		require.NotNil(t, err, raw)
		require.Equal(t, OutOfBounds, err.Reason, raw)
	}
}

func TestBrokenPaths(t *testing.T) {
	tree := sampleTree()
	tx := sampleTx()

	cases := []string{
		"nosuch",
		"params.nosuch",
		"deadline.further", // selecting into a scalar
		"params.tokenIn[0]", // indexing a scalar
		"params",            // terminal composite
		"params.amounts",    // terminal composite
	}
	for _, raw := range cases {
		_, err := ResolveExpr(raw, tree, tx)
		require.NotNil(t, err, raw)
		require.Equal(t, Broken, err.Reason, raw)
	}
}

func TestByteIndexYieldsSingleByte(t *testing.T) {
	v, err := ResolveExpr("params.path[-1]", sampleTree(), sampleTx())
	require.Nil(t, err)
	require.Equal(t, []byte{0xaa}, v.Raw)
}
