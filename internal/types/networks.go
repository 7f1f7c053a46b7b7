package types

import "sort"

// ChainID is the numeric EVM chain identifier
type ChainID int64

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = 1
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainID = 10
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainID = 137
	// ChainBase represents the Base network
	ChainBase ChainID = 8453
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = 42161
)

// NetworkInfo is static per-chain configuration
type NetworkInfo struct {
	ID              ChainID `json:"id"`
	Name            string  `json:"name"`
	ShortName       string  `json:"shortName"`
	Color           string  `json:"color"`
	Icon            string  `json:"icon"`
	ProviderNetwork string  `json:"alchemyNetwork"`
}

var supportedNetworks = map[ChainID]NetworkInfo{
	ChainEthereum: {
		ID:              ChainEthereum,
		Name:            "Ethereum",
		ShortName:       "ETH",
		Color:           "#627EEA",
		Icon:            "https://cryptologos.cc/logos/ethereum-eth-logo.svg",
		ProviderNetwork: "eth-mainnet",
	},
	ChainPolygon: {
		ID:              ChainPolygon,
		Name:            "Polygon",
		ShortName:       "MATIC",
		Color:           "#8247E5",
		Icon:            "https://cryptologos.cc/logos/polygon-matic-logo.svg",
		ProviderNetwork: "polygon-mainnet",
	},
	ChainArbitrum: {
		ID:              ChainArbitrum,
		Name:            "Arbitrum",
		ShortName:       "ARB",
		Color:           "#2D374B",
		Icon:            "https://cryptologos.cc/logos/arbitrum-arb-logo.svg",
		ProviderNetwork: "arb-mainnet",
	},
	ChainOptimism: {
		ID:              ChainOptimism,
		Name:            "Optimism",
		ShortName:       "OP",
		Color:           "#FF0420",
		Icon:            "https://cryptologos.cc/logos/optimism-ethereum-op-logo.svg",
		ProviderNetwork: "opt-mainnet",
	},
	ChainBase: {
		ID:              ChainBase,
		Name:            "Base",
		ShortName:       "BASE",
		Color:           "#0052FF",
		Icon:            "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/base/info/logo.png",
		ProviderNetwork: "base-mainnet",
	},
}

// LookupNetwork returns the network for a chain id
func LookupNetwork(id ChainID) (NetworkInfo, bool) {
	n, ok := supportedNetworks[id]
	return n, ok
}

// SupportedNetworks returns all supported networks ordered by chain id
func SupportedNetworks() []NetworkInfo {
	networks := make([]NetworkInfo, 0, len(supportedNetworks))
	for _, n := range supportedNetworks {
		networks = append(networks, n)
	}
	sort.Slice(networks, func(i, j int) bool {
		return networks[i].ID < networks[j].ID
	})
	return networks
}
