package networks

import (
	"encoding/json"
	"fmt"
	"time"
)

type GenericEtherscanNetworkConfig struct {
	Name                            string   `json:"name"`
	AlternativeNames                []string `json:"alternative_names"`
	ChainID                         uint64   `json:"chain_id"`
	NativeTokenSymbol               string   `json:"native_token_symbol"`
	NativeTokenDecimal              uint64   `json:"native_token_decimal"`
	BlockTime                       uint64   `json:"block_time"`
	BlockExplorerAPIKeyVariableName string   `json:"block_explorer_api_key_variable_name"`
	BlockExplorerAPIURL             string   `json:"block_explorer_api_url"`
}

// GenericEtherscanNetwork is a generic implementation of a network that uses
// Etherscan as their official explorer
type GenericEtherscanNetwork struct {
	config GenericEtherscanNetworkConfig
}

func NewGenericEtherscanNetwork(config GenericEtherscanNetworkConfig) *GenericEtherscanNetwork {
	return &GenericEtherscanNetwork{config: config}
}

func (gn *GenericEtherscanNetwork) GetName() string {
	return gn.config.Name
}

func (gn *GenericEtherscanNetwork) GetChainID() uint64 {
	return gn.config.ChainID
}

func (gn *GenericEtherscanNetwork) GetAlternativeNames() []string {
	return gn.config.AlternativeNames
}

func (gn *GenericEtherscanNetwork) GetNativeTokenSymbol() string {
	return gn.config.NativeTokenSymbol
}

func (gn *GenericEtherscanNetwork) GetNativeTokenDecimal() uint64 {
	return gn.config.NativeTokenDecimal
}

func (gn *GenericEtherscanNetwork) GetBlockTime() time.Duration {
	return time.Duration(gn.config.BlockTime) * time.Second
}

func (gn *GenericEtherscanNetwork) GetBlockExplorerAPIKeyVariableName() string {
	return gn.config.BlockExplorerAPIKeyVariableName
}

func (gn *GenericEtherscanNetwork) GetBlockExplorerAPIURL() string {
	return gn.config.BlockExplorerAPIURL
}

func NewNetworkFromJSON(content []byte) (Network, error) {
	networkConfig := GenericEtherscanNetworkConfig{}
	err := json.Unmarshal(content, &networkConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal network config: %w", err)
	}

	return NewGenericEtherscanNetwork(networkConfig), nil
}
