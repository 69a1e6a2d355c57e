package networks

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

const etherscanV2APIURL = "https://api.etherscan.io/v2/api"

func newBuiltinNetwork(name string, chainID uint64, symbol string, blockTime uint64, altNames ...string) Network {
	return NewGenericEtherscanNetwork(GenericEtherscanNetworkConfig{
		Name:                            name,
		AlternativeNames:                altNames,
		ChainID:                         chainID,
		NativeTokenSymbol:               symbol,
		NativeTokenDecimal:              18,
		BlockTime:                       blockTime,
		BlockExplorerAPIKeyVariableName: "ETHERSCAN_API_KEY",
		BlockExplorerAPIURL:             etherscanV2APIURL,
	})
}

var (
	EthereumMainnet = newBuiltinNetwork("mainnet", 1, "ETH", 12, "ethereum")
	BSCMainnet      = newBuiltinNetwork("bsc", 56, "BNB", 3, "binance")
	Matic           = newBuiltinNetwork("polygon", 137, "POL", 2, "matic")
	ArbitrumMainnet = newBuiltinNetwork("arbitrum", 42161, "ETH", 1)
	OptimismMainnet = newBuiltinNetwork("optimism", 10, "ETH", 2)
	BaseMainnet     = newBuiltinNetwork("base", 8453, "ETH", 2)
	Avalanche       = newBuiltinNetwork("avalanche", 43114, "AVAX", 2, "avax")
)

// Insert more Network implementation here to support
// more chains
var supportedNetworks = []Network{
	EthereumMainnet,
	BSCMainnet,
	Matic,
	ArbitrumMainnet,
	OptimismMainnet,
	BaseMainnet,
	Avalanche,
}

var globalSupportedNetworks = newSupportedNetworks()
var ErrNetworkNotFound = fmt.Errorf("network not found")

type networkRegistry struct {
	networks     map[string]Network
	networksByID map[uint64]Network
}

func (n *networkRegistry) getSupportedNetworkNames() []string {
	res := []string{}
	for _, nw := range n.networks {
		res = append(res, nw.GetName())
		res = append(res, nw.GetAlternativeNames()...)
	}
	return res
}

func (n *networkRegistry) getNetworkByID(id uint64) (Network, error) {
	res, found := n.networksByID[id]
	if !found {
		return nil, fmt.Errorf("network id %d is not supported", id)
	}
	return res, nil
}

func (n *networkRegistry) getNetwork(name string) (Network, error) {
	res, found := n.networks[name]
	if !found {
		return nil, fmt.Errorf("network name '%s': %w", name, ErrNetworkNotFound)
	}
	return res, nil
}

func newSupportedNetworks() *networkRegistry {
	result := networkRegistry{
		map[string]Network{},
		map[uint64]Network{},
	}
	for _, n := range supportedNetworks {
		if _, found := result.networks[n.GetName()]; found {
			panic(
				fmt.Errorf(
					"network with name or alternative name of '%s' already exists",
					n.GetName(),
				),
			)
		}
		result.networks[n.GetName()] = n
		result.networksByID[n.GetChainID()] = n
		for _, an := range n.GetAlternativeNames() {
			if _, found := result.networks[an]; found {
				panic(
					fmt.Errorf("network with name or alternative name of '%s' already exists", an),
				)
			}
			result.networks[an] = n
		}
	}

	// load custom networks from ~/.clearsign/networks/
	customNetworks, err := loadCustomNetworks()
	if err != nil {
		fmt.Printf("WARNING: Failed to load custom networks: %s. Ignore and continue with built-in networks.\n", err)
		return &result
	}

	for _, n := range customNetworks {
		result.networks[n.GetName()] = n
		result.networksByID[n.GetChainID()] = n
	}
	return &result
}

func loadCustomNetworks() ([]Network, error) {
	usr, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	customNetworksDir := filepath.Join(usr.HomeDir, ".clearsign", "networks")
	files, err := filepath.Glob(filepath.Join(customNetworksDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob between json files in ~/.clearsign/networks: %w", err)
	}

	networks := []Network{}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file, err)
		}

		network, err := NewNetworkFromJSON(content)
		if err != nil {
			fmt.Printf("failed to parse network from file %s: %s. Ignore and continue with other custom networks.\n", file, err)
			continue
		}

		networks = append(networks, network)
	}

	return networks, nil
}

func GetSupportedNetworks() []Network {
	res := []Network{}
	for _, n := range globalSupportedNetworks.networks {
		res = append(res, n)
	}
	return res
}

func GetNetwork(name string) (Network, error) {
	return globalSupportedNetworks.getNetwork(name)
}

func GetNetworkByID(id uint64) (Network, error) {
	return globalSupportedNetworks.getNetworkByID(id)
}

func GetSupportedNetworkNames() []string {
	return globalSupportedNetworks.getSupportedNetworkNames()
}
