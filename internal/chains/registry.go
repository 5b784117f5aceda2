package chains

// Supported chain ids (EIP-155, hex-encoded as wallets report them).
const (
	EthereumMainnet = "0x1"
	EthereumSepolia = "0xaa36a7"
)

type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Network is the static configuration for one supported chain. The same
// object, minus internal fields, is what wallet_addEthereumChain expects.
type Network struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

var networks = map[string]Network{
	EthereumMainnet: {
		ChainID:   EthereumMainnet,
		ChainName: "Ethereum Mainnet",
		NativeCurrency: NativeCurrency{
			Name:     "Ethereum",
			Symbol:   "ETH",
			Decimals: 18,
		},
		RPCURLs:           []string{"https://eth-mainnet.public.blastapi.io"},
		BlockExplorerURLs: []string{"https://etherscan.io"},
	},
	EthereumSepolia: {
		ChainID:   EthereumSepolia,
		ChainName: "Sepolia Test Network",
		NativeCurrency: NativeCurrency{
			Name:     "Sepolia Ethereum",
			Symbol:   "SepoliaETH",
			Decimals: 18,
		},
		RPCURLs:           []string{"https://ethereum-sepolia.publicnode.com"},
		BlockExplorerURLs: []string{"https://sepolia.etherscan.io"},
	},
}

func NameOf(chainID string) string {
	if n, ok := networks[chainID]; ok {
		return n.ChainName
	}
	return "Unknown Network"
}

func SymbolOf(chainID string) string {
	if n, ok := networks[chainID]; ok {
		return n.NativeCurrency.Symbol
	}
	return "ETH"
}

func IsSupported(chainID string) bool {
	_, ok := networks[chainID]
	return ok
}

// AddChainParams returns the wallet_addEthereumChain parameter object for a
// supported chain, used when the wallet reports the chain as not added yet.
func AddChainParams(chainID string) (Network, bool) {
	n, ok := networks[chainID]
	return n, ok
}

// IsMainnet reports whether ENS resolution applies for the chain.
func IsMainnet(chainID string) bool {
	return chainID == EthereumMainnet
}
