package networks

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetNetworkByNameAndAlternativeName(t *testing.T) {
	n, err := GetNetwork("mainnet")
	require.NoError(t, err)
	require.EqualValues(t, 1, n.GetChainID())

	alias, err := GetNetwork("ethereum")
	require.NoError(t, err)
	require.Equal(t, n.GetName(), alias.GetName())

	_, err = GetNetwork("nosuchchain")
	require.ErrorIs(t, err, ErrNetworkNotFound)
}

func TestGetNetworkByID(t *testing.T) {
	n, err := GetNetworkByID(56)
	require.NoError(t, err)
	require.Equal(t, "BNB", n.GetNativeTokenSymbol())

	_, err = GetNetworkByID(999999)
	require.Error(t, err)
}

func TestNewNetworkFromJSON(t *testing.T) {
	n, err := NewNetworkFromJSON([]byte(`{
		"name": "testnet",
		"chain_id": 4242,
		"native_token_symbol": "TST",
		"native_token_decimal": 18,
		"block_time": 5,
		"block_explorer_api_key_variable_name": "TESTNET_API_KEY",
		"block_explorer_api_url": "https://api.etherscan.io/v2/api"
	}`))
	require.NoError(t, err)
	require.Equal(t, "testnet", n.GetName())
	require.EqualValues(t, 4242, n.GetChainID())

	_, err = NewNetworkFromJSON([]byte(`{`))
	require.Error(t, err)
}
