package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSignature(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"transfer(address,uint256)", "transfer(address,uint256)"},
		{"transfer(address to, uint256 amount)", "transfer(address,uint256)"},
		{"transfer(address to,uint amount)", "transfer(address,uint256)"},
		{"deposit()", "deposit()"},
		{"setData(bytes calldata data)", "setData(bytes)"},
		{"batch(uint256[] memory ids, int[] values)", "batch(uint256[],int256[])"},
		{
			"exactInput((address tokenIn, bytes path, uint256 amountIn) params)",
			"exactInput((address,bytes,uint256))",
		},
		{
			"multicall((address target, (uint256 a, uint256 b)[] pairs)[] calls, bool strict)",
			"multicall((address,(uint256,uint256)[])[],bool)",
		},
	}
	for _, c := range cases {
		got, err := NormalizeSignature(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestNormalizeSignatureRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"transfer",
		"transfer(address",
		"(address)",
		"f(address to))",
		"f((address a, uint256 b)",
	} {
		_, err := NormalizeSignature(in)
		require.Error(t, err, in)
	}
}

func TestSelectorFromSignature(t *testing.T) {
	sel, err := SelectorFromSignature("transfer(address to, uint256 amount)")
	require.NoError(t, err)
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, sel)

	sel, err = SelectorFromSignature("approve(address,uint256)")
	require.NoError(t, err)
	require.Equal(t, [4]byte{0x09, 0x5e, 0xa7, 0xb3}, sel)
}

func TestSelectorFromFormatKey(t *testing.T) {
	sel, err := SelectorFromFormatKey("0xa9059cbb")
	require.NoError(t, err)
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, sel)

	sel, err = SelectorFromFormatKey("transfer(address,uint256)")
	require.NoError(t, err)
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, sel)

	_, err = SelectorFromFormatKey("0xnothex00")
	require.Error(t, err)
}
