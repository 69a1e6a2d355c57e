package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlainDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "erc20.json", `{
		"context": {"contract": {
			"abi": [{"type":"function","name":"transfer"}],
			"deployments": [{"chainId": 1, "address": "0x1111111111111111111111111111111111111111"}]
		}},
		"metadata": {"owner": "Example", "token": {"symbol": "EXM", "decimals": 18}},
		"display": {"formats": {
			"transfer(address,uint256)": {
				"intent": "Send",
				"fields": [{"path": "to", "label": "To"}, {"path": "amount", "label": "Amount", "format": "tokenAmount"}],
				"required": ["to", "amount"]
			}
		}}
	}`)

	doc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Context.Contract.Deployments, 1)
	require.EqualValues(t, 1, doc.Context.Contract.Deployments[0].ChainID)

	embedded, ok := doc.Context.Contract.EmbeddedABI()
	require.True(t, ok)
	require.Contains(t, embedded, `"transfer"`)
	_, ok = doc.Context.Contract.ABIURL()
	require.False(t, ok)

	format := doc.Display.Formats["transfer(address,uint256)"]
	require.NotNil(t, format)
	require.Equal(t, "Send", format.Intent)
	require.Len(t, format.Fields, 2)
	require.Equal(t, []string{"to", "amount"}, format.Required)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.json", `{
		"metadata": {"owner": "Base Owner", "token": {"symbol": "BASE", "decimals": 18}},
		"display": {"formats": {
			"transfer(address,uint256)": {"intent": "Send", "fields": [{"path": "to", "label": "To"}]}
		}}
	}`)
	path := writeFile(t, dir, "child.json", `{
		"includes": "common.json",
		"metadata": {"owner": "Child Owner"},
		"context": {"contract": {"deployments": [{"chainId": 56, "address": "0x2222222222222222222222222222222222222222"}]}}
	}`)

	doc, err := Load(path)
	require.NoError(t, err)

	// the including file wins on conflict, untouched keys come from the base
	require.Equal(t, "Child Owner", doc.Metadata.Owner)
	require.Equal(t, "BASE", doc.Metadata.Token.Symbol)
	require.NotNil(t, doc.Display.Formats["transfer(address,uint256)"])
	require.EqualValues(t, 56, doc.Context.Contract.Deployments[0].ChainID)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"includes": "b.json"}`)
	path := writeFile(t, dir, "b.json", `{"includes": "a.json"}`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func TestABIURL(t *testing.T) {
	c := &ContractContext{ABI: []byte(`"https://example.org/abis/router.json"`)}
	u, ok := c.ABIURL()
	require.True(t, ok)
	require.Equal(t, "https://example.org/abis/router.json", u)
	_, ok = c.EmbeddedABI()
	require.False(t, ok)
}
