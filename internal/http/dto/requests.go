package dto

type SwitchNetworkRequest struct {
	ChainID string `json:"chainId"`
}
